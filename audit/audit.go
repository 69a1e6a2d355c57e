// Package audit runs one end to end descriptor audit: resolve the contract
// abi, sample recent transactions per declared function, and analyze
// coverage of every display format.
package audit

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tranvictor/clearsign/coverage"
	"github.com/tranvictor/clearsign/descriptor"
	"github.com/tranvictor/clearsign/explorers"
	"github.com/tranvictor/clearsign/fetcher"
	"github.com/tranvictor/clearsign/loader"
)

// Result is one audit run's complete output, consumed by a reporter. A set
// Fatal means the run couldn't produce coverage at all; Functions is then
// empty rather than partial and misleading.
type Result struct {
	RunID      string
	ChainID    uint64
	Descriptor string
	Contract   string
	ABISource  string
	Fatal      string
	Unmatched  []string
	Functions  []*coverage.FunctionReport
}

// Reporter consumes audit results. Implementations render or persist them;
// the engine itself never formats prose.
type Reporter interface {
	Report(result *Result) error
}

type Runner struct {
	chainID  uint64
	explorer explorers.BlockExplorer
	client   *fetcher.Client
	loader   *loader.Loader
	analyzer *coverage.Analyzer
	abiFile  string
	samples  int
	logger   *zap.Logger
}

func NewRunner(
	chainID uint64,
	explorer explorers.BlockExplorer,
	client *fetcher.Client,
	ldr *loader.Loader,
	analyzer *coverage.Analyzer,
	abiFile string,
	samplesPerSelector int,
	logger *zap.Logger,
) *Runner {
	if samplesPerSelector <= 0 {
		samplesPerSelector = loader.DefaultConfig().SamplesPerSelector
	}
	return &Runner{
		chainID:  chainID,
		explorer: explorer,
		client:   client,
		loader:   ldr,
		analyzer: analyzer,
		abiFile:  abiFile,
		samples:  samplesPerSelector,
		logger:   logger,
	}
}

// Run audits one descriptor document against the runner's chain.
func (r *Runner) Run(ctx context.Context, doc *descriptor.Document) (*Result, error) {
	result := &Result{RunID: uuid.New().String(), ChainID: r.chainID}

	deployments := r.deploymentsForChain(doc)
	if len(deployments) == 0 {
		return nil, fmt.Errorf("descriptor has no deployment on chain %d", r.chainID)
	}
	result.Contract = strings.ToLower(deployments[0].Address)

	abiStr, source, err := r.resolveABI(ctx, doc, result.Contract)
	if err != nil {
		// no abi means no trustworthy coverage at all
		result.Fatal = err.Error()
		return result, nil
	}
	result.ABISource = source

	parsed, err := abi.JSON(strings.NewReader(abiStr))
	if err != nil {
		result.Fatal = fmt.Sprintf("abi from %s doesn't parse: %s", source, err)
		return result, nil
	}

	fds, unmatched, err := descriptor.BindFormats(&parsed, doc.Display)
	if err != nil {
		result.Fatal = err.Error()
		return result, nil
	}
	descriptor.ApplyDefaultToken(doc.Metadata, fds)
	sort.Strings(unmatched)
	result.Unmatched = unmatched
	for _, key := range unmatched {
		r.logger.Warn("format key has no matching abi function", zap.String("key", key))
	}

	samples := r.sampleDeployments(ctx, deployments, fds)

	for _, fd := range fds {
		result.Functions = append(result.Functions, r.analyzer.Analyze(fd, samples[fd.SelectorHex()]))
	}
	sort.Slice(result.Functions, func(i, j int) bool {
		return result.Functions[i].Selector < result.Functions[j].Selector
	})

	r.logger.Info("audit finished",
		zap.String("run_id", result.RunID),
		zap.String("contract", result.Contract),
		zap.Int("functions", len(result.Functions)),
		zap.Strings("unmatched_formats", unmatched),
	)
	return result, nil
}

func (r *Runner) deploymentsForChain(doc *descriptor.Document) []descriptor.Deployment {
	if doc.Context == nil || doc.Context.Contract == nil {
		return nil
	}
	matched := []descriptor.Deployment{}
	for _, d := range doc.Context.Contract.Deployments {
		if d.ChainID == r.chainID {
			matched = append(matched, d)
		}
	}
	return matched
}

// resolveABI tries every abi source in order: embedded in the descriptor, a
// URL the descriptor points at, a local file given on the command line, and
// finally the explorer's verified-source endpoint.
func (r *Runner) resolveABI(ctx context.Context, doc *descriptor.Document, address string) (string, string, error) {
	contract := doc.Context.Contract

	if embedded, ok := contract.EmbeddedABI(); ok {
		return embedded, "descriptor", nil
	}

	if url, ok := contract.ABIURL(); ok {
		body, err := r.client.Get(ctx, url, nil, nil)
		if err == nil {
			return string(body), url, nil
		}
		r.logger.Warn("abi url fetch failed, falling through", zap.String("url", url), zap.Error(err))
	}

	if r.abiFile != "" {
		raw, err := os.ReadFile(r.abiFile)
		if err == nil {
			return string(raw), r.abiFile, nil
		}
		r.logger.Warn("abi file unreadable, falling through", zap.String("file", r.abiFile), zap.Error(err))
	}

	abiStr, err := r.explorer.GetABIString(ctx, address)
	if err != nil {
		return "", "", fmt.Errorf("couldn't obtain abi for %s from any source: %s", address, err)
	}
	return abiStr, "explorer", nil
}

// sampleDeployments walks the deployments in order, topping up each
// selector's bucket until it reaches the per-selector target or the
// deployments run out. Most descriptors have one deployment per chain;
// several deployments aggregate, which helps thin proxies.
func (r *Runner) sampleDeployments(ctx context.Context, deployments []descriptor.Deployment, fds []*descriptor.FunctionDescriptor) map[string][]*loader.Sample {
	merged := map[string][]*loader.Sample{}
	for _, fd := range fds {
		merged[fd.SelectorHex()] = nil
	}

	for _, deployment := range deployments {
		if allFull(merged, r.samples) {
			break
		}
		got, err := r.loader.Load(ctx, deployment.Address, fds)
		if err != nil {
			r.logger.Warn("sampling failed for deployment, continuing",
				zap.String("address", deployment.Address),
				zap.Error(err),
			)
			continue
		}
		for selector, samples := range got {
			room := r.samples - len(merged[selector])
			if room <= 0 {
				continue
			}
			if len(samples) > room {
				samples = samples[:room]
			}
			merged[selector] = append(merged[selector], samples...)
		}
	}
	return merged
}

func allFull(samples map[string][]*loader.Sample, target int) bool {
	for _, s := range samples {
		if len(s) < target {
			return false
		}
	}
	return len(samples) > 0
}
