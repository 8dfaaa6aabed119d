// Package domain resolves the ABI-encoded constructor arguments of deployed
// contracts, preferring the explorer's answer and falling back to the chain.
package domain

// Request describes one constructor-argument query.
type Request struct {
	Provider string
	Address  string
	// OnChainLookup skips the explorer and derives the arguments from the
	// creation transaction.
	OnChainLookup bool
	// CreationTxHash, when set, avoids the creator lookup on the node.
	CreationTxHash string
	// Bytecode is the contract's creation bytecode without arguments, hex encoded.
	Bytecode string
}

// Result holds the resolved arguments. ConstructorArgs may be empty.
type Result struct {
	Address         string `json:"address"`
	ConstructorArgs string `json:"constructor_args"`
}
