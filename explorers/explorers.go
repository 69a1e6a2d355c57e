package explorers

import (
	"context"
)

// MaxPageProduct is the provider-enforced pagination ceiling: a txlist
// request with page × offset beyond this is rejected server side, so we
// never send one.
const MaxPageProduct = 10000

// BlockExplorer is the chain-data provider contract the engine consumes.
type BlockExplorer interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockNumberByTime(ctx context.Context, timestamp int64, closest string) (uint64, error)
	ListTransactions(ctx context.Context, address string, startBlock, endBlock uint64, page, offset int) ([]TxListEntry, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	EthCall(ctx context.Context, to string, data string) (string, error)
	GetABIString(ctx context.Context, address string) (string, error)
}

// TxListEntry is one row of an explorer's transaction list response. Numeric
// fields stay as decimal strings, the way etherscan-alike APIs return them.
type TxListEntry struct {
	Hash        string `json:"hash"`
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Input       string `json:"input"`
	IsError     string `json:"isError"`
}

type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
	Logs            []Log  `json:"logs"`
}
