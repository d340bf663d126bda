package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/icsattest/icsattest/config"
)

func TestRun_Version(t *testing.T) {
	if code := run([]string{"--version"}); code != 0 {
		t.Fatalf("run --version = %d, want 0", code)
	}
}

func TestRun_BadFlag(t *testing.T) {
	if code := run([]string{"--no-such-flag"}); code != 2 {
		t.Fatalf("run with unknown flag = %d, want 2", code)
	}
}

func TestRun_InvalidAlgorithm(t *testing.T) {
	if code := run([]string{"--algorithm", "rot13"}); code != 1 {
		t.Fatalf("run with bad algorithm = %d, want 1", code)
	}
}

func TestApplyFlags_Overlay(t *testing.T) {
	cfg := config.Default()
	applyFlags(cfg, "http://collector:9000", "ed25519", 3, 2, 5, 20, "debug")

	if cfg.ServerURL != "http://collector:9000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Algorithm != "ed25519" {
		t.Errorf("Algorithm = %q", cfg.Algorithm)
	}
	if cfg.Stream.SensorCount != 3 {
		t.Errorf("SensorCount = %d, want 3", cfg.Stream.SensorCount)
	}
	if cfg.Stream.FrequencyHz != 2 {
		t.Errorf("FrequencyHz = %d, want 2", cfg.Stream.FrequencyHz)
	}
	if cfg.Stream.DurationS != 5 {
		t.Errorf("DurationS = %d, want 5", cfg.Stream.DurationS)
	}
	if cfg.MaxConcurrent != 20 {
		t.Errorf("MaxConcurrent = %d, want 20", cfg.MaxConcurrent)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestApplyFlags_ZeroValuesKeepConfig(t *testing.T) {
	cfg := config.Default()
	want := *cfg
	applyFlags(cfg, "", "", 0, 0, 0, 0, "")
	if *cfg != want {
		t.Errorf("zero-valued flags must not touch the configuration")
	}
}

func TestRun_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"verified":           true,
			"processing_time_ms": 0.2,
			"algorithm":          "hmac",
		})
	}))
	defer srv.Close()

	code := run([]string{
		"--server", srv.URL,
		"--algorithm", "hmac",
		"--sensors", "1",
		"--frequency", "5",
		"--duration", "1",
		"--log-level", "error",
	})
	if code != 0 {
		t.Fatalf("run = %d, want 0", code)
	}
}
