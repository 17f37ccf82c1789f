package main

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pfw-hq/relay/pkg/cli"
	"pfw-hq/relay/pkg/hubclient"
	"pfw-hq/relay/pkg/security/siblingauth"
)

var registerFlags struct {
	output string

	hub         string
	source      string
	key         string
	documentID  string
	downloadURL string
	filename    string
	contentType string
	attributes  map[string]string
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a sibling document with a running relay",
	Long: `Register a document owned by a sibling source (fpd, ptab) with a
running relay and print the link it issued.

The request is signed with a short-lived service token minted from the
shared siblings.auth_secret. Registering the same document again returns
the live link instead of a new one.

Examples:
  relay register --hub http://127.0.0.1:8080 --source fpd \
    --key 3b1f6a52-7c1e-4c9a-9f0e-2d7a1c5b8e11 --doc DEC-1 \
    --url https://api.uspto.gov/api/v1/download/petitions/DEC-1.pdf`,
	RunE: registerDocument,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	f := registerCmd.Flags()
	f.StringVarP(&registerFlags.output, "output", "o", "text", "output format (text, json)")
	f.StringVar(&registerFlags.hub, "hub", "", "relay base URL (default: proxy.public_base_url)")
	f.StringVar(&registerFlags.source, "source", "", "sibling source (fpd, ptab)")
	f.StringVar(&registerFlags.key, "key", "", "petition id or proceeding number")
	f.StringVar(&registerFlags.documentID, "doc", "", "document identifier")
	f.StringVar(&registerFlags.downloadURL, "url", "", "upstream download URL")
	f.StringVar(&registerFlags.filename, "filename", "", "display filename")
	f.StringVar(&registerFlags.contentType, "content-type", "", "expected document content type")
	f.StringToStringVar(&registerFlags.attributes, "attr", nil, "reference attribute, key=value (repeatable)")
	for _, name := range []string{"source", "key", "doc", "url"} {
		registerCmd.MarkFlagRequired(name)
	}
}

func registerDocument(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(registerFlags.output)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	mgr, files, err := newSecrets(cfg.Secrets, logger)
	if err != nil {
		return err
	}
	if files != nil {
		defer files.Close()
	}

	hub := registerFlags.hub
	if hub == "" {
		hub = cfg.Proxy.BaseURL()
	}
	signer := siblingauth.NewSigner(mgr.Credential(cfg.Siblings.AuthSecret), cfg.Siblings.TokenTTL, cfg.Siblings.Audience)
	client, err := hubclient.New(hubclient.Config{HubURL: hub, Logger: logger}, signer)
	if err != nil {
		return cli.NewConfigError("hub", err.Error())
	}

	res, err := client.Register(cmd.Context(), hubclient.Registration{
		Source:      registerFlags.source,
		Key:         registerFlags.key,
		DocumentID:  registerFlags.documentID,
		DownloadURL: registerFlags.downloadURL,
		Filename:    registerFlags.filename,
		ContentType: registerFlags.contentType,
		Attributes:  registerFlags.attributes,
	})
	if err != nil {
		return cli.NewCommandError("register", err)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), cli.Rows{
		{Key: "url", Value: res.TokenURL},
		{Key: "reused", Value: strconv.FormatBool(res.Reused)},
		{Key: "expires_at", Value: res.ExpiresAt.UTC().Format(time.RFC3339)},
	})
}
