package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound           = ErrorKind("Not Found")
	Duplicate          = ErrorKind("Duplicate")
	InvalidArgument    = ErrorKind("Invalid Argument")
	Unsupported        = ErrorKind("Unsupported")
	InternalError      = ErrorKind("Internal Error")
	ConflictSetting    = ErrorKind("Conflict Setting")
	Timeout            = ErrorKind("Timeout")
	Closed             = ErrorKind("Closed")
	SomethingWentWrong = ErrorKind("Something Went Wrong")

	// ArchiveTooDeep is returned when a crawl would start below the source's
	// creation block.
	ArchiveTooDeep = ErrorKind("Archive Too Deep")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
