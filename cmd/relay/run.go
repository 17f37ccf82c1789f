package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pfw-hq/relay/pkg/cli"
	"pfw-hq/relay/pkg/config"
	"pfw-hq/relay/pkg/linkcache"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the download relay",
	Long: `Start the download relay with the specified configuration.

The relay listens on the configured address, resolves download tokens
from the link cache and streams the documents from the upstream API.
Expired links are swept on the configured schedule.

Examples:
  # Start with default config
  relay run

  # Start with custom config
  relay run --config /etc/relay/relay.yaml

  # Override listen address
  relay run --listen 127.0.0.1:9090

  # Validate config without starting the relay
  relay run --dry-run`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the relay")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Proxy.ShutdownTimeout)
		defer cancel()
		a.close(shutdownCtx)
	}()

	if err := a.withServer(); err != nil {
		return err
	}
	printBanner(cmd, cfg)

	sweeper := linkcache.NewScheduler(a.cache, cfg.LinkCache.SweepSchedule, a.logger)
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewConfigError("link_cache.sweep_schedule", err.Error())
	}
	defer sweeper.Stop()

	if next := sweeper.NextRun(); next != nil {
		a.logger.Debug("link sweep scheduled", "next_run", next)
	}

	if cfg.Proxy.Startup == config.StartupOnDemand {
		a.logger.Info("startup is on_demand; run binds the listener anyway")
	}

	if err := a.server.EnsureRunning(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintf(out, "✓ Relay listening on %s\n", a.server.Addr())
	fmt.Fprintf(out, "✓ Links: %s/<token>/<filename>\n", cfg.Proxy.BaseURL())
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := a.server.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Relay stopped")
	return nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "PFW Relay v%s\n", Version)
	fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	fmt.Fprintln(out, "✓ Configuration loaded")
	fmt.Fprintf(out, "✓ Link cache: %s (ttl %s)\n", cfg.LinkCache.Backend, cfg.LinkCache.TTL)
	fmt.Fprintf(out, "✓ Rate limit: %d requests per %s\n", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	for _, source := range []linkcache.SourceSystem{linkcache.SourceFPD, linkcache.SourcePTAB} {
		if cfg.Siblings.Enabled(string(source)) {
			fmt.Fprintf(out, "✓ Sibling registration enabled: %s\n", source)
		}
	}
}
