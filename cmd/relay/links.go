package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pfw-hq/relay/pkg/cli"
	"pfw-hq/relay/pkg/config"
	"pfw-hq/relay/pkg/issuer"
	"pfw-hq/relay/pkg/linkcache"
)

var linksFlags struct {
	output string

	source      string
	key         string
	documentID  string
	downloadURL string
	filename    string
	contentType string
	attributes  map[string]string
	ttl         time.Duration
}

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Manage download links",
	Long: `Issue, inspect and sweep download links in the link cache.

Links issued here are served by a running relay that shares the same
link cache (sqlite file or redis). The memory backend does not survive
the command.

Subcommands:
  issue - Issue a download link for a document
  stats - Show link cache statistics
  sweep - Remove expired links

Examples:
  # Issue a link for an application document
  relay links issue --source self --key 17896175 --doc L7AJVPB2GREENX5 --filename ABST.pdf

  # Show statistics as JSON
  relay links stats --output json`,
}

var linksIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a download link",
	Long: `Issue a download link for one document.

The reference is validated by the adapter that owns the source before
anything is stored. An empty --filename derives one from the reference.`,
	RunE: issueLink,
}

var linksStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show link cache statistics",
	RunE:  linkStats,
}

var linksSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired links",
	RunE:  sweepLinks,
}

func init() {
	rootCmd.AddCommand(linksCmd)
	linksCmd.AddCommand(linksIssueCmd, linksStatsCmd, linksSweepCmd)

	linksCmd.PersistentFlags().StringVarP(&linksFlags.output, "output", "o", "text", "output format (text, json)")

	f := linksIssueCmd.Flags()
	f.StringVar(&linksFlags.source, "source", string(linkcache.SourceSelf), "owning source (self, fpd, ptab)")
	f.StringVar(&linksFlags.key, "key", "", "application number, petition id or proceeding number")
	f.StringVar(&linksFlags.documentID, "doc", "", "document identifier")
	f.StringVar(&linksFlags.downloadURL, "url", "", "upstream download URL")
	f.StringVar(&linksFlags.filename, "filename", "", "display filename")
	f.StringVar(&linksFlags.contentType, "content-type", string(linkcache.ContentPDF), "expected document content type")
	f.StringToStringVar(&linksFlags.attributes, "attr", nil, "reference attribute, key=value (repeatable)")
	f.DurationVar(&linksFlags.ttl, "ttl", 0, "link lifetime (default: link_cache.ttl)")
	linksIssueCmd.MarkFlagRequired("key")
	linksIssueCmd.MarkFlagRequired("doc")
}

// openLinks loads config and assembles the app without the HTTP surface.
func openLinks(cmd *cobra.Command) (*app, cli.Formatter, error) {
	format, err := cli.ParseOutputFormat(linksFlags.output)
	if err != nil {
		return nil, nil, cli.NewConfigError("output", err.Error())
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(cmd.Context(), cfg, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	if cfg.LinkCache.Backend == config.BackendMemory {
		a.logger.Warn("memory link cache does not outlive this command")
	}
	return a, cli.NewFormatter(format), nil
}

func issueLink(cmd *cobra.Command, args []string) error {
	a, formatter, err := openLinks(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	tok, err := a.issuer.Issue(cmd.Context(), issuer.LinkRequest{
		Source: linkcache.SourceSystem(linksFlags.source),
		Ref: linkcache.DocumentRef{
			Key:         linksFlags.key,
			DocumentID:  linksFlags.documentID,
			DownloadURL: linksFlags.downloadURL,
			Attributes:  linksFlags.attributes,
		},
		DisplayFilename: linksFlags.filename,
		ContentHint:     linkcache.ContentHint(linksFlags.contentType),
		TTL:             linksFlags.ttl,
	})
	if err != nil {
		return cli.NewCommandError("links issue", err)
	}

	return formatter.FormatTo(cmd.OutOrStdout(), cli.Rows{
		{Key: "url", Value: a.issuer.LinkFor(tok)},
		{Key: "source", Value: string(tok.SourceSystem)},
		{Key: "filename", Value: tok.DisplayFilename},
		{Key: "expires_at", Value: tok.ExpiresAt.UTC().Format(time.RFC3339)},
	})
}

func linkStats(cmd *cobra.Command, args []string) error {
	a, formatter, err := openLinks(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	stats, err := a.cache.Stats(cmd.Context())
	if err != nil {
		return cli.NewCommandError("links stats", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), statsRows(stats, a.cache.TTL()))
}

func sweepLinks(cmd *cobra.Command, args []string) error {
	a, formatter, err := openLinks(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	removed, err := a.cache.Sweep(cmd.Context())
	if err != nil {
		return cli.NewCommandError("links sweep", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), cli.Rows{
		{Key: "removed", Value: strconv.Itoa(removed)},
	})
}

// statsRows flattens stats with per-source counts in source order.
func statsRows(stats linkcache.Stats, ttl time.Duration) cli.Rows {
	rows := cli.Rows{
		{Key: "total", Value: strconv.Itoa(stats.Total)},
		{Key: "active", Value: strconv.Itoa(stats.Active)},
		{Key: "expired", Value: strconv.Itoa(stats.Expired)},
		{Key: "ttl", Value: ttl.String()},
	}

	sources := make([]string, 0, len(stats.BySource))
	for s := range stats.BySource {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)
	for _, s := range sources {
		rows = append(rows, cli.Row{
			Key:   fmt.Sprintf("source.%s", s),
			Value: strconv.Itoa(stats.BySource[linkcache.SourceSystem(s)]),
		})
	}
	return rows
}
