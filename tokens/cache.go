// Package tokens resolves erc20 symbol and decimals through a per-run cache.
package tokens

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// NativeSentinel is the reserved address denoting the chain's native
// currency wherever a token address is expected.
const NativeSentinel = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

const (
	symbolSelector   = "0x95d89b41"
	decimalsSelector = "0x313ce567"
)

type Metadata struct {
	Symbol   string
	Decimals int64
}

// Caller is the read-only contract call surface the cache needs.
type Caller interface {
	EthCall(ctx context.Context, to string, data string) (string, error)
}

// Cache memoizes token metadata for one chain for the lifetime of a run.
// Concurrent lookups of the same address coalesce into a single network
// round trip; entries are never invalidated mid-run.
type Cache struct {
	chainID uint64
	native  Metadata
	caller  Caller
	logger  *zap.Logger

	mu    sync.RWMutex
	data  map[string]*Metadata
	group singleflight.Group
}

func NewCache(chainID uint64, nativeSymbol string, nativeDecimals int64, caller Caller, logger *zap.Logger) *Cache {
	return &Cache{
		chainID: chainID,
		native:  Metadata{Symbol: nativeSymbol, Decimals: nativeDecimals},
		caller:  caller,
		logger:  logger,
		data:    map[string]*Metadata{},
	}
}

// Lookup returns the metadata for one token address. The native sentinel is
// answered locally without touching the network.
func (c *Cache) Lookup(ctx context.Context, address string) (*Metadata, error) {
	address = strings.ToLower(address)
	if address == NativeSentinel {
		native := c.native
		return &native, nil
	}

	key := fmt.Sprintf("%d:%s", c.chainID, address)
	c.mu.RLock()
	meta, ok := c.data[key]
	c.mu.RUnlock()
	if ok {
		return meta, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		meta, ok := c.data[key]
		c.mu.RUnlock()
		if ok {
			return meta, nil
		}

		meta, err := c.fetch(ctx, address)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.data[key] = meta
		c.mu.Unlock()
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Metadata), nil
}

func (c *Cache) fetch(ctx context.Context, address string) (*Metadata, error) {
	symbolHex, err := c.caller.EthCall(ctx, address, symbolSelector)
	if err != nil {
		return nil, fmt.Errorf("symbol() of %s: %w", address, err)
	}
	symbol, err := decodeSymbol(symbolHex)
	if err != nil {
		return nil, fmt.Errorf("symbol() of %s: %w", address, err)
	}

	decimalsHex, err := c.caller.EthCall(ctx, address, decimalsSelector)
	if err != nil {
		return nil, fmt.Errorf("decimals() of %s: %w", address, err)
	}
	decimals, err := decodeUint(decimalsHex)
	if err != nil {
		return nil, fmt.Errorf("decimals() of %s: %w", address, err)
	}

	c.logger.Debug("token metadata fetched",
		zap.Uint64("chain_id", c.chainID),
		zap.String("address", address),
		zap.String("symbol", symbol),
		zap.Int64("decimals", decimals),
	)
	return &Metadata{Symbol: symbol, Decimals: decimals}, nil
}

// decodeSymbol handles both return conventions in the wild: a dynamic abi
// string (offset, length, data) and a left-aligned bytes32.
func decodeSymbol(hexStr string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return "", fmt.Errorf("symbol return is not hex: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty symbol return")
	}

	if len(raw) == 32 {
		return strings.TrimRight(string(raw), "\x00"), nil
	}

	if len(raw) < 64 {
		return "", fmt.Errorf("symbol return too short: %d bytes", len(raw))
	}
	length := new(big.Int).SetBytes(raw[32:64]).Int64()
	if length < 0 || 64+length > int64(len(raw)) {
		return "", fmt.Errorf("symbol string length %d exceeds return data", length)
	}
	return string(raw[64 : 64+length]), nil
}

func decodeUint(hexStr string) (int64, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return 0, fmt.Errorf("uint return is not hex: %w", err)
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("empty uint return")
	}
	return new(big.Int).SetBytes(raw).Int64(), nil
}

// FormatAmount renders a raw token amount with the token's decimal point
// applied, e.g. 1500000000000000000 with 18 decimals becomes "1.5".
func FormatAmount(amount *big.Int, decimals int64) string {
	if decimals <= 0 {
		return amount.String()
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	whole, frac := new(big.Int).QuoRem(amount, divisor, new(big.Int))

	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := strings.TrimRight(
		fmt.Sprintf("%0*s", decimals, new(big.Int).Abs(frac).String()),
		"0",
	)
	return fmt.Sprintf("%s.%s", whole.String(), fracStr)
}
