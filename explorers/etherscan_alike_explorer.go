package explorers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tranvictor/clearsign/fetcher"
	"github.com/tranvictor/clearsign/networks"
)

// ErrWindowTooLarge is returned when the provider refuses a page because the
// result window went past its ceiling. Callers move to the next block window.
var ErrWindowTooLarge = fmt.Errorf("result window is too large")

// ErrNoTransactions is returned by ListTransactions when the provider found
// nothing in the requested range. It is a valid terminal state, not a failure.
var ErrNoTransactions = fmt.Errorf("no transactions found")

type EtherscanLikeExplorer struct {
	Domain  string
	APIKey  string
	ChainID uint64

	client *fetcher.Client
	logger *zap.Logger
}

func NewEtherscanLikeExplorer(domain, apiKey string, chainID uint64, client *fetcher.Client, logger *zap.Logger) *EtherscanLikeExplorer {
	return &EtherscanLikeExplorer{
		Domain:  domain,
		APIKey:  apiKey,
		ChainID: chainID,
		client:  client,
		logger:  logger,
	}
}

// NewEtherscanV2 builds an explorer client for one network on etherscan's v2
// multichain API, reading the API key from the network's env variable.
func NewEtherscanV2(network networks.Network, client *fetcher.Client, logger *zap.Logger) *EtherscanLikeExplorer {
	apiKey := strings.Trim(os.Getenv(network.GetBlockExplorerAPIKeyVariableName()), " ")
	return NewEtherscanLikeExplorer(
		network.GetBlockExplorerAPIURL(),
		apiKey,
		network.GetChainID(),
		client,
		logger,
	)
}

func (ee *EtherscanLikeExplorer) baseQuery() url.Values {
	q := url.Values{}
	q.Set("chainid", strconv.FormatUint(ee.ChainID, 10))
	if ee.APIKey != "" {
		q.Set("apikey", ee.APIKey)
	}
	return q
}

// accountResponse is the {"status","message","result"} envelope used by the
// account and contract modules.
type accountResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// proxyResponse is the json-rpc passthrough envelope used by module=proxy.
type proxyResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// checkRateLimited classifies provider-level throttling that hides behind an
// HTTP 200 so the fetcher retries it instead of failing the request.
func checkRateLimited(body []byte) error {
	resp := accountResponse{}
	if err := json.Unmarshal(body, &resp); err != nil {
		// proxy responses don't carry status/message, leave them alone
		return nil
	}
	if resp.Status == "0" && strings.Contains(strings.ToLower(resp.Message), "rate limit") {
		return fetcher.Transient(fmt.Errorf("provider rate limited: %s", resp.Message))
	}
	return nil
}

func (ee *EtherscanLikeExplorer) getAccount(ctx context.Context, q url.Values) (*accountResponse, error) {
	body, err := ee.client.Get(ctx, ee.Domain, q, checkRateLimited)
	if err != nil {
		return nil, err
	}
	resp := &accountResponse{}
	if err = json.Unmarshal(body, resp); err != nil {
		return nil, fetcher.Permanent(0, fmt.Errorf("couldn't unmarshal %s to explorer response: %w", string(body), err))
	}
	return resp, nil
}

func (ee *EtherscanLikeExplorer) getProxy(ctx context.Context, q url.Values) (json.RawMessage, error) {
	body, err := ee.client.Get(ctx, ee.Domain, q, checkRateLimited)
	if err != nil {
		return nil, err
	}
	resp := proxyResponse{}
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, fetcher.Permanent(0, fmt.Errorf("couldn't unmarshal %s to proxy response: %w", string(body), err))
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("proxy error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

func (ee *EtherscanLikeExplorer) LatestBlockNumber(ctx context.Context) (uint64, error) {
	q := ee.baseQuery()
	q.Set("module", "proxy")
	q.Set("action", "eth_blockNumber")

	result, err := ee.getProxy(ctx, q)
	if err != nil {
		return 0, err
	}
	var hexNum string
	if err = json.Unmarshal(result, &hexNum); err != nil {
		return 0, fmt.Errorf("unexpected eth_blockNumber result %s: %w", string(result), err)
	}
	return strconv.ParseUint(strings.TrimPrefix(hexNum, "0x"), 16, 64)
}

func (ee *EtherscanLikeExplorer) BlockNumberByTime(ctx context.Context, timestamp int64, closest string) (uint64, error) {
	q := ee.baseQuery()
	q.Set("module", "block")
	q.Set("action", "getblocknobytime")
	q.Set("timestamp", strconv.FormatInt(timestamp, 10))
	q.Set("closest", closest)

	resp, err := ee.getAccount(ctx, q)
	if err != nil {
		return 0, err
	}
	if resp.Status != "1" {
		return 0, fmt.Errorf("getblocknobytime failed: %s", resp.Message)
	}
	var blockStr string
	if err = json.Unmarshal(resp.Result, &blockStr); err != nil {
		return 0, fmt.Errorf("unexpected getblocknobytime result %s: %w", string(resp.Result), err)
	}
	return strconv.ParseUint(blockStr, 10, 64)
}

// ListTransactions returns one page of the address's transactions between
// startBlock and endBlock inclusive, most recent first. The provider caps
// page × offset; requests over the cap are refused locally.
func (ee *EtherscanLikeExplorer) ListTransactions(ctx context.Context, address string, startBlock, endBlock uint64, page, offset int) ([]TxListEntry, error) {
	if page < 1 || offset < 1 {
		return nil, fmt.Errorf("page and offset must be positive, got page=%d offset=%d", page, offset)
	}
	if page*offset > MaxPageProduct {
		return nil, fmt.Errorf("page %d × offset %d exceeds the provider ceiling of %d: %w",
			page, offset, MaxPageProduct, ErrWindowTooLarge)
	}

	q := ee.baseQuery()
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address)
	q.Set("startblock", strconv.FormatUint(startBlock, 10))
	q.Set("endblock", strconv.FormatUint(endBlock, 10))
	q.Set("sort", "desc")
	q.Set("page", strconv.Itoa(page))
	q.Set("offset", strconv.Itoa(offset))

	resp, err := ee.getAccount(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp.Status != "1" {
		msg := resp.Message
		switch {
		case strings.Contains(msg, "No transactions found"):
			return nil, ErrNoTransactions
		case strings.Contains(msg, "Result window is too large"):
			return nil, ErrWindowTooLarge
		default:
			return nil, fmt.Errorf("txlist failed: %s", msg)
		}
	}

	txs := []TxListEntry{}
	if err = json.Unmarshal(resp.Result, &txs); err != nil {
		return nil, fetcher.Permanent(0, fmt.Errorf("couldn't unmarshal txlist result: %w", err))
	}
	return txs, nil
}

func (ee *EtherscanLikeExplorer) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	q := ee.baseQuery()
	q.Set("module", "proxy")
	q.Set("action", "eth_getTransactionReceipt")
	q.Set("txhash", txHash)

	result, err := ee.getProxy(ctx, q)
	if err != nil {
		return nil, err
	}
	if string(result) == "null" {
		return nil, fmt.Errorf("no receipt found for %s", txHash)
	}
	receipt := &Receipt{}
	if err = json.Unmarshal(result, receipt); err != nil {
		return nil, fetcher.Permanent(0, fmt.Errorf("couldn't unmarshal receipt for %s: %w", txHash, err))
	}
	return receipt, nil
}

// EthCall performs a read-only call through the provider's json-rpc proxy and
// returns the hex-encoded return data.
func (ee *EtherscanLikeExplorer) EthCall(ctx context.Context, to string, data string) (string, error) {
	q := ee.baseQuery()
	q.Set("module", "proxy")
	q.Set("action", "eth_call")
	q.Set("to", to)
	q.Set("data", data)
	q.Set("tag", "latest")

	result, err := ee.getProxy(ctx, q)
	if err != nil {
		return "", err
	}
	var hexData string
	if err = json.Unmarshal(result, &hexData); err != nil {
		return "", fmt.Errorf("unexpected eth_call result %s: %w", string(result), err)
	}
	return hexData, nil
}

func (ee *EtherscanLikeExplorer) GetABIString(ctx context.Context, address string) (string, error) {
	q := ee.baseQuery()
	q.Set("module", "contract")
	q.Set("action", "getabi")
	q.Set("address", address)

	resp, err := ee.getAccount(ctx, q)
	if err != nil {
		return "", err
	}
	if resp.Status != "1" {
		return "", fmt.Errorf("error from %s getabi for %s: %s", ee.Domain, address, resp.Message)
	}
	var abiStr string
	if err = json.Unmarshal(resp.Result, &abiStr); err != nil {
		return "", fmt.Errorf("unexpected getabi result: %w", err)
	}
	return abiStr, nil
}
