package config

import (
	"sync"
	"testing"
)

func resetSingleton() {
	configMutex.Lock()
	globalConfig = nil
	configMutex.Unlock()
	initOnce = sync.Once{}
}

func TestInitialize(t *testing.T) {
	resetSingleton()
	t.Cleanup(resetSingleton)
	t.Setenv("PFW_SECRETS_DOTENV_FILE", t.TempDir()+"/none.env")

	if GetConfig() != nil {
		t.Fatal("expected nil config before Initialize")
	}

	path := writeConfig(t, "rate_limit:\n  requests: 2\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if GetConfig().RateLimit.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", GetConfig().RateLimit.Requests)
	}

	// Later calls are ignored.
	if err := Initialize(writeConfig(t, "rate_limit:\n  requests: 9\n")); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	if GetConfig().RateLimit.Requests != 2 {
		t.Errorf("second Initialize should be a no-op")
	}
}

func TestReloadConfig_KeepsOldOnFailure(t *testing.T) {
	resetSingleton()
	t.Cleanup(resetSingleton)
	t.Setenv("PFW_SECRETS_DOTENV_FILE", t.TempDir()+"/none.env")

	SetConfig(Defaults())
	if err := ReloadConfig(writeConfig(t, "rate_limit:\n  requests: -1\n")); err == nil {
		t.Fatal("expected reload error")
	}
	if MustGetConfig().RateLimit.Requests != DefaultRateLimitRequests {
		t.Error("failed reload replaced the configuration")
	}

	if err := ReloadConfig(writeConfig(t, "rate_limit:\n  requests: 4\n")); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if MustGetConfig().RateLimit.Requests != 4 {
		t.Error("reload did not apply")
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetSingleton()
	t.Cleanup(resetSingleton)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustGetConfig()
}
