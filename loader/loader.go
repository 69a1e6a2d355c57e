// Package loader samples recent on-chain transactions per function selector
// so coverage analysis runs against real calls instead of synthetic ones.
package loader

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tranvictor/clearsign/decode"
	"github.com/tranvictor/clearsign/descriptor"
	"github.com/tranvictor/clearsign/events"
	"github.com/tranvictor/clearsign/explorers"
)

type Config struct {
	// SamplesPerSelector is K, the bucket size per function.
	SamplesPerSelector int
	// LookbackDays bounds how far back the walk goes.
	LookbackDays int
	// WindowBlocks is the size of one backward walk step.
	WindowBlocks uint64
	// PageSize is the txlist page size. Together with the provider's
	// page × size ceiling it bounds how many pages one window can yield.
	PageSize int
	// BlockTimeSeconds approximates blocks-per-day when the provider can't
	// answer a timestamp lookup.
	BlockTimeSeconds uint64
	// ReceiptConcurrency bounds parallel receipt fetches.
	ReceiptConcurrency int
}

func DefaultConfig() Config {
	return Config{
		SamplesPerSelector: 5,
		LookbackDays:       30,
		WindowBlocks:       50000,
		PageSize:           1000,
		BlockTimeSeconds:   12,
		ReceiptConcurrency: 4,
	}
}

// Sample is one retained transaction: its envelope, decoded arguments, and
// the events found in its receipt. ReceiptMissing marks samples whose
// receipt couldn't be fetched; their log evidence is unavailable, which is
// not the same as "no events".
type Sample struct {
	Context        decode.TxContext
	Tree           *decode.Node
	Events         []events.ReceiptEvent
	ReceiptMissing bool
}

type Loader struct {
	explorer explorers.BlockExplorer
	decoder  *events.Decoder
	cfg      Config
	logger   *zap.Logger
}

func New(explorer explorers.BlockExplorer, decoder *events.Decoder, cfg Config, logger *zap.Logger) *Loader {
	if cfg.SamplesPerSelector <= 0 {
		cfg.SamplesPerSelector = DefaultConfig().SamplesPerSelector
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultConfig().LookbackDays
	}
	if cfg.WindowBlocks == 0 {
		cfg.WindowBlocks = DefaultConfig().WindowBlocks
	}
	if cfg.PageSize <= 0 || cfg.PageSize > explorers.MaxPageProduct {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.BlockTimeSeconds == 0 {
		cfg.BlockTimeSeconds = DefaultConfig().BlockTimeSeconds
	}
	if cfg.ReceiptConcurrency <= 0 {
		cfg.ReceiptConcurrency = DefaultConfig().ReceiptConcurrency
	}
	return &Loader{explorer: explorer, decoder: decoder, cfg: cfg, logger: logger}
}

// bucket accumulates txlist entries for one selector. For payable functions
// it keeps looking until it holds both a zero-value and a nonzero-value
// sample, swapping one out if needed, since both shapes exercise different
// display rules.
type bucket struct {
	fd      *descriptor.FunctionDescriptor
	entries []explorers.TxListEntry
	limit   int
}

func (b *bucket) hasValueKind(nonzero bool) bool {
	for _, e := range b.entries {
		if isNonzeroValue(e.Value) == nonzero {
			return true
		}
	}
	return false
}

func (b *bucket) offer(entry explorers.TxListEntry) {
	if len(b.entries) < b.limit {
		b.entries = append(b.entries, entry)
		return
	}
	if !b.fd.Payable {
		return
	}
	nonzero := isNonzeroValue(entry.Value)
	if b.hasValueKind(nonzero) {
		return
	}
	// swap out the newest entry of the overrepresented kind
	for i := len(b.entries) - 1; i >= 0; i-- {
		if isNonzeroValue(b.entries[i].Value) != nonzero {
			b.entries[i] = entry
			return
		}
	}
}

func (b *bucket) satisfied() bool {
	if len(b.entries) < b.limit {
		return false
	}
	if !b.fd.Payable {
		return true
	}
	return b.hasValueKind(true) && b.hasValueKind(false)
}

// Load walks backward from the latest block collecting up to K samples per
// descriptor. Sampling is best effort: selectors with thin activity come
// back short or empty, and that is a valid result, not an error. The only
// fatal failure is being unable to locate the chain head.
func (l *Loader) Load(ctx context.Context, address string, fds []*descriptor.FunctionDescriptor) (map[string][]*Sample, error) {
	address = strings.ToLower(address)

	latest, err := l.explorer.LatestBlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	startBlock := l.lookbackStart(ctx, latest)

	buckets := map[string]*bucket{}
	for _, fd := range fds {
		buckets[fd.SelectorHex()] = &bucket{fd: fd, limit: l.cfg.SamplesPerSelector}
	}

	l.walk(ctx, address, buckets, startBlock, latest)

	out := map[string][]*Sample{}
	for selector, b := range buckets {
		samples := l.buildSamples(ctx, b)
		sort.Slice(samples, func(i, j int) bool {
			return samples[i].Context.BlockNumber > samples[j].Context.BlockNumber
		})
		out[selector] = samples
		l.logger.Info("selector sampled",
			zap.String("selector", selector),
			zap.String("function", b.fd.Name),
			zap.Int("samples", len(samples)),
			zap.Int("requested", l.cfg.SamplesPerSelector),
		)
	}
	return out, nil
}

// lookbackStart converts the lookback window in days to a starting block,
// falling back to a block-time estimate when the provider can't answer.
func (l *Loader) lookbackStart(ctx context.Context, latest uint64) uint64 {
	ts := time.Now().Unix() - int64(l.cfg.LookbackDays)*86400
	start, err := l.explorer.BlockNumberByTime(ctx, ts, "after")
	if err == nil {
		return start
	}
	l.logger.Warn("timestamp lookup failed, estimating lookback start from block time", zap.Error(err))

	span := uint64(l.cfg.LookbackDays) * 86400 / l.cfg.BlockTimeSeconds
	if span >= latest {
		return 0
	}
	return latest - span
}

func (l *Loader) walk(ctx context.Context, address string, buckets map[string]*bucket, startBlock, latest uint64) {
	maxPages := explorers.MaxPageProduct / l.cfg.PageSize

	windowEnd := latest
	for {
		if ctx.Err() != nil {
			return
		}
		if allSatisfied(buckets) {
			return
		}

		var windowStart uint64
		if windowEnd >= l.cfg.WindowBlocks {
			windowStart = windowEnd - l.cfg.WindowBlocks + 1
		}
		if windowStart < startBlock {
			windowStart = startBlock
		}

		l.walkWindow(ctx, address, buckets, windowStart, windowEnd, maxPages)

		if windowStart <= startBlock || windowStart == 0 {
			return
		}
		windowEnd = windowStart - 1
	}
}

func (l *Loader) walkWindow(ctx context.Context, address string, buckets map[string]*bucket, windowStart, windowEnd uint64, maxPages int) {
	for page := 1; page <= maxPages; page++ {
		entries, err := l.explorer.ListTransactions(ctx, address, windowStart, windowEnd, page, l.cfg.PageSize)
		if errors.Is(err, explorers.ErrNoTransactions) {
			return
		}
		if err != nil {
			// best effort: give up on this window, keep walking older ones
			l.logger.Warn("transaction listing failed, skipping window remainder",
				zap.Uint64("window_start", windowStart),
				zap.Uint64("window_end", windowEnd),
				zap.Int("page", page),
				zap.Error(err),
			)
			return
		}

		for _, entry := range entries {
			if entry.IsError != "0" {
				continue
			}
			if len(entry.Input) < 10 {
				continue
			}
			selector := strings.ToLower(entry.Input[:10])
			b, ok := buckets[selector]
			if !ok {
				continue
			}
			b.offer(entry)
		}

		if len(entries) < l.cfg.PageSize || allSatisfied(buckets) {
			return
		}
	}
}

func allSatisfied(buckets map[string]*bucket) bool {
	for _, b := range buckets {
		if !b.satisfied() {
			return false
		}
	}
	return true
}

// buildSamples decodes the retained entries and attaches their receipts,
// fetching receipts concurrently under the shared rate budget.
func (l *Loader) buildSamples(ctx context.Context, b *bucket) []*Sample {
	samples := make([]*Sample, len(b.entries))
	var wg sync.WaitGroup
	sem := make(chan struct{}, l.cfg.ReceiptConcurrency)

	for i, entry := range b.entries {
		tree, err := decode.DecodeInput(b.fd.Method, entry.Input)
		if err != nil {
			l.logger.Warn("calldata decode failed, dropping sample",
				zap.String("tx", entry.Hash),
				zap.String("function", b.fd.Name),
				zap.Error(err),
			)
			continue
		}

		sample := &Sample{
			Context: decode.TxContext{
				Hash:        entry.Hash,
				From:        strings.ToLower(entry.From),
				To:          strings.ToLower(entry.To),
				Value:       parseDecimal(entry.Value),
				BlockNumber: parseUint(entry.BlockNumber),
			},
			Tree: tree,
		}
		samples[i] = sample

		wg.Add(1)
		go func(hash string, s *Sample) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			receipt, err := l.explorer.GetTransactionReceipt(ctx, hash)
			if err != nil {
				l.logger.Warn("receipt fetch failed", zap.String("tx", hash), zap.Error(err))
				s.ReceiptMissing = true
				return
			}
			s.Events = l.decoder.Decode(ctx, receipt.Logs)
		}(entry.Hash, sample)
	}
	wg.Wait()

	kept := make([]*Sample, 0, len(samples))
	for _, s := range samples {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return kept
}

func isNonzeroValue(decimal string) bool {
	v := parseDecimal(decimal)
	return v != nil && v.Sign() > 0
}

func parseDecimal(s string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

func parseUint(s string) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
