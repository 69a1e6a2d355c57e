// Copyright © 2018 Victor Tran
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tranvictor/clearsign/audit"
	"github.com/tranvictor/clearsign/config"
	"github.com/tranvictor/clearsign/coverage"
	"github.com/tranvictor/clearsign/descriptor"
	"github.com/tranvictor/clearsign/events"
	"github.com/tranvictor/clearsign/explorers"
	"github.com/tranvictor/clearsign/fetcher"
	"github.com/tranvictor/clearsign/loader"
	"github.com/tranvictor/clearsign/networks"
	"github.com/tranvictor/clearsign/tokens"
)

var auditCmd = &cobra.Command{
	Use:   "audit <descriptor.json> [descriptor.json...]",
	Short: "Audit one or more display descriptors against on-chain activity",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAudit,
}

func newLogger() (*zap.Logger, error) {
	if config.Verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	network, err := networks.GetNetwork(config.Network)
	if err != nil {
		return err
	}

	rules := coverage.DefaultRuleSet()
	if config.RuleFile != "" {
		rules, err = coverage.LoadRuleSet(config.RuleFile)
		if err != nil {
			return err
		}
	}

	client := fetcher.NewClient(config.RatePerSecond, config.MaxAttempts, logger)
	explorer := explorers.NewEtherscanV2(network, client, logger)
	cache := tokens.NewCache(
		network.GetChainID(),
		network.GetNativeTokenSymbol(),
		int64(network.GetNativeTokenDecimal()),
		explorer,
		logger,
	)
	decoder := events.NewDecoder(cache, logger)

	loaderCfg := loader.Config{
		SamplesPerSelector: config.SamplesPerSelector,
		LookbackDays:       config.LookbackDays,
		WindowBlocks:       config.WindowBlocks,
		PageSize:           config.PageSize,
		BlockTimeSeconds:   uint64(network.GetBlockTime() / time.Second),
		ReceiptConcurrency: config.ReceiptConcurrency,
	}
	ldr := loader.New(explorer, decoder, loaderCfg, logger)
	analyzer := coverage.NewAnalyzer(rules, logger)
	runner := audit.NewRunner(
		network.GetChainID(),
		explorer,
		client,
		ldr,
		analyzer,
		config.ABIFile,
		config.SamplesPerSelector,
		logger,
	)

	var reporter audit.Reporter = consoleReporter{}
	results := []*audit.Result{}
	for _, path := range args {
		doc, err := descriptor.Load(path)
		if err != nil {
			return err
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" auditing %s on %s...", path, network.GetName())
		s.Start()
		result, err := runner.Run(ctx, doc)
		s.Stop()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		result.Descriptor = path

		if err = reporter.Report(result); err != nil {
			return err
		}
		results = append(results, result)
	}

	if config.JSONOutputFile != "" {
		raw, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		if err = os.WriteFile(config.JSONOutputFile, raw, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", config.JSONOutputFile)
	}
	return nil
}

func init() {
	auditCmd.Flags().StringVarP(&config.RuleFile, "rules", "r", "", "json rule file overriding the default audit policy")
	auditCmd.Flags().StringVar(&config.ABIFile, "abi", "", "local abi file used when the descriptor doesn't carry one")
	auditCmd.Flags().IntVar(&config.LookbackDays, "lookback", 30, "how many days of history to sample")
	auditCmd.Flags().IntVarP(&config.SamplesPerSelector, "samples", "k", 5, "target sample count per function")
	auditCmd.Flags().Uint64Var(&config.WindowBlocks, "window", 50000, "block window size for the backward walk")
	auditCmd.Flags().IntVar(&config.PageSize, "page-size", 1000, "transaction list page size")
	auditCmd.Flags().IntVar(&config.RatePerSecond, "rate", fetcher.DefaultCallsPerSecond, "provider calls per second")
	auditCmd.Flags().IntVar(&config.MaxAttempts, "retries", fetcher.DefaultMaxAttempts, "attempts per request before giving up")
	auditCmd.Flags().IntVar(&config.ReceiptConcurrency, "receipt-concurrency", 4, "parallel receipt fetches")
	auditCmd.Flags().StringVarP(&config.JSONOutputFile, "output", "o", "", "also write results to this json file")
	rootCmd.AddCommand(auditCmd)
}
