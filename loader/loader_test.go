package loader

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tranvictor/clearsign/descriptor"
	"github.com/tranvictor/clearsign/events"
	"github.com/tranvictor/clearsign/explorers"
	"github.com/tranvictor/clearsign/tokens"
)

const testABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[]}
]`

type pageCall struct {
	page, offset int
}

type fakeExplorer struct {
	latest      uint64
	latestErr   error
	txs         []explorers.TxListEntry
	receipts    map[string]*explorers.Receipt
	receiptErrs map[string]bool
	calls       []pageCall
}

func (f *fakeExplorer) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return f.latest, f.latestErr
}

func (f *fakeExplorer) BlockNumberByTime(ctx context.Context, ts int64, closest string) (uint64, error) {
	return 1, nil
}

func (f *fakeExplorer) ListTransactions(ctx context.Context, address string, startBlock, endBlock uint64, page, offset int) ([]explorers.TxListEntry, error) {
	f.calls = append(f.calls, pageCall{page: page, offset: offset})
	if page*offset > explorers.MaxPageProduct {
		return nil, explorers.ErrWindowTooLarge
	}

	inRange := []explorers.TxListEntry{}
	for _, tx := range f.txs {
		block, _ := strconv.ParseUint(tx.BlockNumber, 10, 64)
		if block >= startBlock && block <= endBlock {
			inRange = append(inRange, tx)
		}
	}
	sort.Slice(inRange, func(i, j int) bool {
		return inRange[i].BlockNumber > inRange[j].BlockNumber
	})

	from := (page - 1) * offset
	if from >= len(inRange) {
		return nil, explorers.ErrNoTransactions
	}
	to := from + offset
	if to > len(inRange) {
		to = len(inRange)
	}
	return inRange[from:to], nil
}

func (f *fakeExplorer) GetTransactionReceipt(ctx context.Context, txHash string) (*explorers.Receipt, error) {
	if f.receiptErrs[txHash] {
		return nil, fmt.Errorf("receipt unavailable for %s", txHash)
	}
	if r, ok := f.receipts[txHash]; ok {
		return r, nil
	}
	return &explorers.Receipt{TransactionHash: txHash, Status: "0x1"}, nil
}

func (f *fakeExplorer) EthCall(ctx context.Context, to string, data string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (f *fakeExplorer) GetABIString(ctx context.Context, address string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

type noMetadata struct{}

func (noMetadata) Lookup(ctx context.Context, address string) (*tokens.Metadata, error) {
	return nil, fmt.Errorf("no metadata")
}

func testDescriptors(t *testing.T) (transfer, deposit *descriptor.FunctionDescriptor) {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testABI))
	require.NoError(t, err)

	display := &descriptor.Display{Formats: map[string]*descriptor.FunctionFormat{
		"transfer(address,uint256)": {Intent: "Send"},
		"deposit()":                 {Intent: "Wrap"},
	}}
	fds, unmatched, err := descriptor.BindFormats(&parsed, display)
	require.NoError(t, err)
	require.Empty(t, unmatched)

	for _, fd := range fds {
		switch fd.Name {
		case "transfer":
			transfer = fd
		case "deposit":
			deposit = fd
		}
	}
	require.NotNil(t, transfer)
	require.NotNil(t, deposit)
	return transfer, deposit
}

func transferInput(t *testing.T) string {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testABI))
	require.NoError(t, err)
	packed, err := parsed.Pack("transfer",
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		big.NewInt(1000),
	)
	require.NoError(t, err)
	return "0x" + common.Bytes2Hex(packed)
}

func transferEntry(t *testing.T, hash string, block uint64) explorers.TxListEntry {
	return explorers.TxListEntry{
		Hash:        hash,
		BlockNumber: strconv.FormatUint(block, 10),
		From:        "0x2222222222222222222222222222222222222222",
		To:          "0x3333333333333333333333333333333333333333",
		Value:       "0",
		Input:       transferInput(t),
		IsError:     "0",
	}
}

func depositEntry(hash string, block uint64, value string) explorers.TxListEntry {
	return explorers.TxListEntry{
		Hash:        hash,
		BlockNumber: strconv.FormatUint(block, 10),
		From:        "0x2222222222222222222222222222222222222222",
		To:          "0x3333333333333333333333333333333333333333",
		Value:       value,
		Input:       "0xd0e30db0",
		IsError:     "0",
	}
}

func newTestLoader(explorer explorers.BlockExplorer, cfg Config) *Loader {
	decoder := events.NewDecoder(noMetadata{}, zap.NewNop())
	return New(explorer, decoder, cfg, zap.NewNop())
}

func TestLoadFillsBucketInDescendingBlockOrder(t *testing.T) {
	transfer, _ := testDescriptors(t)

	fake := &fakeExplorer{latest: 1000}
	for i := 0; i < 8; i++ {
		fake.txs = append(fake.txs, transferEntry(t, fmt.Sprintf("0xt%d", i), uint64(100+i*10)))
	}

	cfg := DefaultConfig()
	cfg.SamplesPerSelector = 5
	samples, err := newTestLoader(fake, cfg).Load(context.Background(), "0x3333333333333333333333333333333333333333", []*descriptor.FunctionDescriptor{transfer})
	require.NoError(t, err)

	got := samples[transfer.SelectorHex()]
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		require.Greater(t, got[i-1].Context.BlockNumber, got[i].Context.BlockNumber)
	}
	// decoded tree travels with the sample
	to, ok := got[0].Tree.Field("to")
	require.True(t, ok)
	require.Equal(t, "0x1111111111111111111111111111111111111111", to.Str)
}

func TestLoadZeroSamplesIsAValidResult(t *testing.T) {
	transfer, _ := testDescriptors(t)

	fake := &fakeExplorer{latest: 1000}
	samples, err := newTestLoader(fake, DefaultConfig()).Load(context.Background(), "0x3333333333333333333333333333333333333333", []*descriptor.FunctionDescriptor{transfer})
	require.NoError(t, err)
	require.Empty(t, samples[transfer.SelectorHex()])
}

func TestLoadNeverExceedsPaginationCeiling(t *testing.T) {
	transfer, _ := testDescriptors(t)

	fake := &fakeExplorer{latest: 5000}
	// plenty of matching traffic so the walk paginates hard
	for i := 0; i < 900; i++ {
		fake.txs = append(fake.txs, transferEntry(t, fmt.Sprintf("0xt%d", i), uint64(1000+i)))
	}
	// an error entry for every block too, doubling page pressure
	for i := 0; i < 900; i++ {
		entry := transferEntry(t, fmt.Sprintf("0xe%d", i), uint64(1000+i))
		entry.IsError = "1"
		fake.txs = append(fake.txs, entry)
	}

	cfg := DefaultConfig()
	cfg.PageSize = 100
	cfg.WindowBlocks = 10000
	cfg.SamplesPerSelector = 2000 // force exhaustion of every page

	_, err := newTestLoader(fake, cfg).Load(context.Background(), "0x3333333333333333333333333333333333333333", []*descriptor.FunctionDescriptor{transfer})
	require.NoError(t, err)
	require.NotEmpty(t, fake.calls)
	for _, call := range fake.calls {
		require.LessOrEqual(t, call.page*call.offset, explorers.MaxPageProduct)
	}
}

func TestLoadPayableDiversity(t *testing.T) {
	_, deposit := testDescriptors(t)

	fake := &fakeExplorer{latest: 1000}
	// recent zero-value deposits first, a single nonzero one much older
	for i := 0; i < 6; i++ {
		fake.txs = append(fake.txs, depositEntry(fmt.Sprintf("0xz%d", i), uint64(900+i), "0"))
	}
	fake.txs = append(fake.txs, depositEntry("0xpaid", 500, "1000000000000000000"))

	cfg := DefaultConfig()
	cfg.SamplesPerSelector = 3
	samples, err := newTestLoader(fake, cfg).Load(context.Background(), "0x3333333333333333333333333333333333333333", []*descriptor.FunctionDescriptor{deposit})
	require.NoError(t, err)

	got := samples[deposit.SelectorHex()]
	require.Len(t, got, 3)

	var zero, nonzero int
	for _, s := range got {
		if s.Context.Value.Sign() > 0 {
			nonzero++
		} else {
			zero++
		}
	}
	require.Positive(t, zero)
	require.Positive(t, nonzero)
}

func TestLoadSkipsRevertedAndBareTransactions(t *testing.T) {
	transfer, _ := testDescriptors(t)

	reverted := transferEntry(t, "0xbad", 300)
	reverted.IsError = "1"
	bare := explorers.TxListEntry{
		Hash: "0xbare", BlockNumber: "301", Value: "0", Input: "0x", IsError: "0",
		From: "0x2222222222222222222222222222222222222222",
		To:   "0x3333333333333333333333333333333333333333",
	}
	fake := &fakeExplorer{latest: 1000, txs: []explorers.TxListEntry{
		reverted, bare, transferEntry(t, "0xgood", 302),
	}}

	samples, err := newTestLoader(fake, DefaultConfig()).Load(context.Background(), "0x3333333333333333333333333333333333333333", []*descriptor.FunctionDescriptor{transfer})
	require.NoError(t, err)

	got := samples[transfer.SelectorHex()]
	require.Len(t, got, 1)
	require.Equal(t, "0xgood", got[0].Context.Hash)
}

func TestLoadAttachesReceiptEvents(t *testing.T) {
	transfer, _ := testDescriptors(t)

	fake := &fakeExplorer{
		latest: 1000,
		txs:    []explorers.TxListEntry{transferEntry(t, "0xgood", 300)},
		receipts: map[string]*explorers.Receipt{
			"0xgood": {
				TransactionHash: "0xgood",
				Status:          "0x1",
				Logs: []explorers.Log{{
					Address: "0x4444444444444444444444444444444444444444",
					Topics: []string{
						events.TransferTopic,
						"0x0000000000000000000000002222222222222222222222222222222222222222",
						"0x0000000000000000000000001111111111111111111111111111111111111111",
					},
					Data: "0x03e8",
				}},
			},
		},
	}

	samples, err := newTestLoader(fake, DefaultConfig()).Load(context.Background(), "0x3333333333333333333333333333333333333333", []*descriptor.FunctionDescriptor{transfer})
	require.NoError(t, err)

	got := samples[transfer.SelectorHex()]
	require.Len(t, got, 1)
	require.False(t, got[0].ReceiptMissing)
	require.Len(t, got[0].Events, 1)
	require.Equal(t, events.Transfer, got[0].Events[0].Kind)
	require.Equal(t, "1000", got[0].Events[0].Amount.String())
}

func TestLoadMarksMissingReceipts(t *testing.T) {
	transfer, _ := testDescriptors(t)

	fake := &fakeExplorer{
		latest:      1000,
		txs:         []explorers.TxListEntry{transferEntry(t, "0xgood", 300)},
		receiptErrs: map[string]bool{"0xgood": true},
	}

	samples, err := newTestLoader(fake, DefaultConfig()).Load(context.Background(), "0x3333333333333333333333333333333333333333", []*descriptor.FunctionDescriptor{transfer})
	require.NoError(t, err)

	got := samples[transfer.SelectorHex()]
	require.Len(t, got, 1)
	require.True(t, got[0].ReceiptMissing)
	require.Empty(t, got[0].Events)
}

func TestLoadFailsWhenChainHeadUnavailable(t *testing.T) {
	transfer, _ := testDescriptors(t)
	fake := &fakeExplorer{latestErr: fmt.Errorf("provider down")}

	_, err := newTestLoader(fake, DefaultConfig()).Load(context.Background(), "0x3333333333333333333333333333333333333333", []*descriptor.FunctionDescriptor{transfer})
	require.Error(t, err)
}
