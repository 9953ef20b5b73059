package config

import "testing"

func TestDefaultMatchesBrokerWellKnownHosts(t *testing.T) {
	cfg := Default()
	if cfg.RESTBaseURL != DefaultRESTBaseURL {
		t.Fatalf("RESTBaseURL = %q", cfg.RESTBaseURL)
	}
	if cfg.StreamingURL != DefaultStreamingURL {
		t.Fatalf("StreamingURL = %q", cfg.StreamingURL)
	}
	if cfg.Locale != DefaultLocale {
		t.Fatalf("Locale = %q", cfg.Locale)
	}
}

func TestNewAppliesOptionsOverDefaults(t *testing.T) {
	cfg := New(WithLocale("de"), WithProxyURL("socks5://localhost:1080"), WithRESTBaseURL("https://sandbox.example"))
	if cfg.Locale != "de" {
		t.Fatalf("Locale = %q", cfg.Locale)
	}
	if cfg.ProxyURL != "socks5://localhost:1080" {
		t.Fatalf("ProxyURL = %q", cfg.ProxyURL)
	}
	if cfg.RESTBaseURL != "https://sandbox.example" {
		t.Fatalf("RESTBaseURL = %q", cfg.RESTBaseURL)
	}
}

func TestWithLocaleIgnoresBlank(t *testing.T) {
	cfg := New(WithLocale("   "))
	if cfg.Locale != DefaultLocale {
		t.Fatalf("Locale = %q, want default preserved for blank override", cfg.Locale)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("ZETA_REST_BASE_URL", "https://env.example")
	t.Setenv("ZETA_LOCALE", "fr")

	cfg := Load()
	if cfg.RESTBaseURL != "https://env.example" {
		t.Fatalf("RESTBaseURL = %q", cfg.RESTBaseURL)
	}
	if cfg.Locale != "fr" {
		t.Fatalf("Locale = %q", cfg.Locale)
	}
}

func TestLoadOptionsOverrideEnv(t *testing.T) {
	t.Setenv("ZETA_LOCALE", "fr")
	cfg := Load(WithLocale("it"))
	if cfg.Locale != "it" {
		t.Fatalf("Locale = %q, want option to win over env", cfg.Locale)
	}
}

func TestCloneIsIndependentCopy(t *testing.T) {
	cfg := New(WithLocale("de"))
	clone := cfg.Clone()
	clone.Locale = "en"
	if cfg.Locale != "de" {
		t.Fatalf("original mutated via clone: Locale = %q", cfg.Locale)
	}
}

func TestCloneNil(t *testing.T) {
	var cfg *Config
	if cfg.Clone() != nil {
		t.Fatal("Clone of nil receiver must return nil")
	}
}
