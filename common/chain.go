package common

// Chain identifies the EVM network the indexer crawls.
type Chain string

const (
	ChainMainnet Chain = "mainnet"
	ChainSepolia Chain = "sepolia"
)

var supportedChains = map[Chain]struct{}{
	ChainMainnet: {},
	ChainSepolia: {},
}

var chainIds = map[Chain]uint64{
	ChainMainnet: 1,
	ChainSepolia: 11155111,
}

func (c Chain) IsSupported() bool {
	_, ok := supportedChains[c]
	return ok
}

// ChainId returns the numeric chain id, 0 if the chain is unknown.
func (c Chain) ChainId() uint64 {
	return chainIds[c]
}

func (c Chain) String() string {
	return string(c)
}
