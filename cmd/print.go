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
	"fmt"

	"github.com/logrusorgru/aurora"

	"github.com/tranvictor/clearsign/audit"
	"github.com/tranvictor/clearsign/coverage"
)

// consoleReporter renders results to stdout with color.
type consoleReporter struct{}

func (consoleReporter) Report(result *audit.Result) error {
	fmt.Printf("\n%s  %s\n", aurora.Bold(result.Descriptor), aurora.Gray(12, "run "+result.RunID))
	fmt.Printf("contract %s on chain %d (abi: %s)\n", result.Contract, result.ChainID, result.ABISource)

	if result.Fatal != "" {
		fmt.Printf("%s %s\n", aurora.Red("FATAL:"), result.Fatal)
		return nil
	}

	for _, key := range result.Unmatched {
		fmt.Printf("%s format %q matches no abi function\n", aurora.Yellow("warning:"), key)
	}

	for _, report := range result.Functions {
		printFunction(report)
	}
	return nil
}

func printFunction(report *coverage.FunctionReport) {
	fmt.Printf("\n%s %s", aurora.Cyan(report.Selector), aurora.Bold(report.Signature))
	if report.Intent != "" {
		fmt.Printf("  %s", aurora.Gray(12, `"`+report.Intent+`"`))
	}
	fmt.Println()

	if report.NoData {
		fmt.Printf("  %s\n", aurora.Yellow("no transactions found in the lookback window, coverage not verified"))
		return
	}
	fmt.Printf("  %d sample(s), state %s\n", report.SampleCount, report.State)

	if len(report.Findings) == 0 {
		fmt.Printf("  %s\n", aurora.Green("no findings"))
	}
	for _, finding := range report.Findings {
		label := aurora.Red(finding.Kind.String())
		switch finding.Severity {
		case coverage.SeverityWarning:
			label = aurora.Yellow(finding.Kind.String())
		case coverage.SeverityAdvisory:
			label = aurora.Blue(finding.Kind.String())
		}
		fmt.Printf("  %s %s: %s", label, finding.Path, finding.Detail)
		if finding.TxHash != "" {
			fmt.Printf(" %s", aurora.Gray(12, "(e.g. "+finding.TxHash+")"))
		}
		fmt.Println()
	}

	for _, sample := range report.Samples {
		fmt.Printf("  %s block %d", aurora.Gray(12, sample.TxHash), sample.BlockNumber)
		if sample.ReceiptMissing {
			fmt.Printf(" %s", aurora.Yellow("(receipt unavailable)"))
		} else {
			fmt.Printf(" (%d events)", sample.EventCount)
		}
		fmt.Println()
		for _, field := range sample.Fields {
			if field.OK {
				fmt.Printf("    %-24s %s\n", field.Label+":", field.Value)
			} else {
				fmt.Printf("    %-24s %s\n", field.Label+":", aurora.Red("unresolved: "+field.Reason))
			}
		}
	}
}
