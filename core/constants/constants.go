package constants

// Version is the points-indexer client version.
const Version = "v0.1.0"
