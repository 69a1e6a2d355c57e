package decode

import "math/big"

// TxContext carries the transaction envelope fields that descriptor paths
// can reference alongside decoded calldata.
type TxContext struct {
	Hash        string
	From        string
	To          string
	Value       *big.Int
	BlockNumber uint64
}
