package infra

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("IMAGE_PROXY_HOST_ALLOWLIST", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if len(cfg.ImageProxy.HostAllowlist) != 1 || cfg.ImageProxy.HostAllowlist[0] != "localhost" {
		t.Fatalf("HostAllowlist mismatch: %#v", cfg.ImageProxy.HostAllowlist)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:1919/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
}

func TestLoadConfigMergesExplicitAllowlist(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static")
	t.Setenv("IMAGE_PROXY_HOST_ALLOWLIST", "Media.example.com, localhost ,cdn.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"cdn.example.com", "localhost", "media.example.com"}
	if len(cfg.ImageProxy.HostAllowlist) != len(expected) {
		t.Fatalf("HostAllowlist mismatch: got %#v want %#v", cfg.ImageProxy.HostAllowlist, expected)
	}
	for i, host := range expected {
		if cfg.ImageProxy.HostAllowlist[i] != host {
			t.Fatalf("HostAllowlist[%d] = %q, want %q", i, cfg.ImageProxy.HostAllowlist[i], host)
		}
	}
}

func TestLoadConfigFittingDefaults(t *testing.T) {
	setRequiredEnv(t)
	for _, key := range []string{"FITTING_MAX_UPLOAD_BYTES", "FITTING_TIMEOUT_SECONDS", "FITTING_BACKGROUND_TIMEOUT_SECONDS", "FITTING_VIDEO_TIMEOUT_SECONDS", "FITTING_IMAGE_RAMP_MS", "FITTING_VIDEO_RAMP_MS", "FITTING_WORKFLOW_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	f := cfg.Fitting
	if f.MaxUploadBytes != 10<<20 {
		t.Fatalf("MaxUploadBytes = %d", f.MaxUploadBytes)
	}
	if f.Timeout != 60*time.Second || f.BackgroundTimeout != 120*time.Second {
		t.Fatalf("timeouts = %v / %v", f.Timeout, f.BackgroundTimeout)
	}
	if f.VideoTimeout != 120*time.Second {
		t.Fatalf("VideoTimeout = %v", f.VideoTimeout)
	}
	if f.ImageRamp != 19*time.Second || f.VideoRamp != 10*time.Second {
		t.Fatalf("ramps = %v / %v", f.ImageRamp, f.VideoRamp)
	}
	if cfg.FittingEnabled() {
		t.Fatalf("fitting should be disabled without a workflow url")
	}
}

func TestLoadConfigVideoTimeoutIndependentOfBackground(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FITTING_BACKGROUND_TIMEOUT_SECONDS", "90")
	t.Setenv("FITTING_VIDEO_TIMEOUT_SECONDS", "300")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Fitting.BackgroundTimeout != 90*time.Second || cfg.Fitting.VideoTimeout != 300*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.Fitting.BackgroundTimeout, cfg.Fitting.VideoTimeout)
	}
}

func TestLoadConfigZeroUploadLimitDisablesRule(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FITTING_MAX_UPLOAD_BYTES", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Fitting.MaxUploadBytes != 0 {
		t.Fatalf("MaxUploadBytes = %d, want 0", cfg.Fitting.MaxUploadBytes)
	}
}

func TestLoadConfigReportsAllProblems(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FITTING_CDN_URL_PATTERN", "(unclosed")

	_, err := LoadConfig()
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"DATABASE_URL", "JWT_SECRET", "FITTING_CDN_URL_PATTERN"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %s", msg, want)
		}
	}
}
