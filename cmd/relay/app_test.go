package main

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"pfw-hq/relay/pkg/config"
	"pfw-hq/relay/pkg/issuer"
	"pfw-hq/relay/pkg/linkcache"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Proxy.ListenAddress = "127.0.0.1:0"
	cfg.LinkCache.Backend = config.BackendMemory
	cfg.LinkCache.KeyFile = filepath.Join(t.TempDir(), "link_cache.key")
	cfg.Secrets.EnvPrefix = "RELAY_APP_TEST_"
	cfg.Secrets.DotenvFile = ""
	return cfg
}

func TestAppIssuesServableLinkOnDemand(t *testing.T) {
	cfg := testConfig(t)
	cfg.Proxy.Startup = config.StartupOnDemand

	ctx := context.Background()
	a, err := newApp(ctx, cfg, io.Discard)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(ctx)
	if err := a.withServer(); err != nil {
		t.Fatalf("withServer() error = %v", err)
	}

	if a.server.IsRunning() {
		t.Fatal("server running before the first link was issued")
	}

	link, err := a.issuer.CreateDownloadLink(ctx, issuer.LinkRequest{
		Source:          linkcache.SourceSelf,
		Ref:             linkcache.DocumentRef{Key: "17896175", DocumentID: "L7AJVPB2GREENX5"},
		DisplayFilename: "ABST.pdf",
	})
	if err != nil {
		t.Fatalf("CreateDownloadLink() error = %v", err)
	}
	if !a.server.IsRunning() {
		t.Fatal("server not started by link issuance")
	}
	if !strings.HasSuffix(link, "/ABST.pdf") {
		t.Errorf("link = %q, want ABST.pdf suffix", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link %q does not parse: %v", link, err)
	}
	req, _ := http.NewRequest(http.MethodHead, "http://"+a.server.Addr()+u.Path, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("HEAD %s: %v", u.Path, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("HEAD status = %d, want 200", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "ABST.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestAppRejectsInvalidReferenceBeforeStarting(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	a, err := newApp(ctx, cfg, io.Discard)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close(ctx)
	if err := a.withServer(); err != nil {
		t.Fatalf("withServer() error = %v", err)
	}

	_, err = a.issuer.CreateDownloadLink(ctx, issuer.LinkRequest{
		Source: linkcache.SourceSelf,
		Ref:    linkcache.DocumentRef{Key: "not-a-number", DocumentID: "X"},
	})
	if err == nil {
		t.Fatal("expected invalid reference error")
	}
	if a.server.IsRunning() {
		t.Error("server started for a rejected reference")
	}

	stats, err := a.cache.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
}

func TestNewSealerUsesKeyFileWhenSecretMissing(t *testing.T) {
	cfg := testConfig(t)
	logger, err := newLogger(cfg.Telemetry.Logging, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	mgr, _, err := newSecrets(cfg.Secrets, logger)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	first, err := newSealer(ctx, cfg.LinkCache, mgr, logger)
	if err != nil || first == nil {
		t.Fatalf("newSealer() = %v, %v", first, err)
	}

	sealed, err := first.Seal([]byte("ref"), nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newSealer(ctx, cfg.LinkCache, mgr, logger)
	if err != nil {
		t.Fatal(err)
	}
	if got, err := second.Open(sealed, nil); err != nil || string(got) != "ref" {
		t.Errorf("reloaded key Open() = %q, %v", got, err)
	}

	cfg.LinkCache.SealSecret = ""
	if s, err := newSealer(ctx, cfg.LinkCache, mgr, logger); s != nil || err != nil {
		t.Errorf("empty seal secret: newSealer() = %v, %v; want nil, nil", s, err)
	}
}

func TestNewBackendRejectsUnknown(t *testing.T) {
	_, err := newBackend(context.Background(), config.LinkCacheConfig{Backend: "etcd"})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
