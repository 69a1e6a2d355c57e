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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tranvictor/clearsign/config"
	"github.com/tranvictor/clearsign/networks"
)

var rootCmd = &cobra.Command{
	Use:   "clearsign",
	Short: "Audit clear-signing display descriptors against real transactions",
	Long: `clearsign checks that a wallet display descriptor faithfully represents
what the contract function actually does on-chain. It samples recent
transactions for every declared function, resolves each display field
against the decoded calldata, and reports hidden parameters, broken
paths and undisclosed native amounts.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&config.Network, "network", "n", "ethereum",
		fmt.Sprintf("network to audit on, one of: %s", strings.Join(networks.GetSupportedNetworkNames(), ", ")),
	)
	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "enable debug logging")
}
