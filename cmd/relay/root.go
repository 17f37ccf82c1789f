package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pfw-hq/relay/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Patent file wrapper document download relay",
	Long: `Relay issues short-lived download links for patent documents and serves
them through a local HTTP proxy.

Every download goes through one rolling-window rate limit and carries the
upstream API key, which never leaves the relay. Sibling services (final
petition decisions, PTAB) register their documents over an authenticated
endpoint and receive links on the same proxy.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with its status.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	code := cli.ExitCode(err)
	if code == cli.ExitConfig {
		for _, ce := range cli.ConfigErrors(err) {
			fmt.Fprintln(os.Stderr, ce)
		}
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "relay.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
