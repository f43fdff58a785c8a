package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Element.Model != "tts_models/tr/common-voice/glow-tts" {
		t.Fatalf("expected default model, got %q", cfg.Element.Model)
	}
	if cfg.Backend.Mode != "mock" {
		t.Fatalf("expected mock backend by default, got %q", cfg.Backend.Mode)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coquitts.yaml")
	body := []byte(`
element:
  model: tts_models/multilingual/multi-dataset/xtts_v2
  speaker: "Ana Florence"
  language: en
  use_acceleration: true
backend:
  mode: exec
  command: "python3 coqui-helper.py"
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Element.Model != "tts_models/multilingual/multi-dataset/xtts_v2" {
		t.Fatalf("unexpected model: %q", cfg.Element.Model)
	}
	if cfg.Element.Speaker != "Ana Florence" || cfg.Element.Language != "en" {
		t.Fatalf("unexpected element config: %+v", cfg.Element)
	}
	if !cfg.Element.UseAcceleration {
		t.Fatal("expected use_acceleration true")
	}
	if cfg.Backend.Mode != "exec" || cfg.Backend.Command == "" {
		t.Fatalf("unexpected backend config: %+v", cfg.Backend)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COQUITTS_ELEMENT_MODEL", "tts_models/en/vctk/vits")
	t.Setenv("COQUITTS_ELEMENT_SPEAKER", "p225")
	t.Setenv("COQUITTS_ELEMENT_USE_ACCELERATION", "true")
	t.Setenv("COQUITTS_BACKEND_MODE", "exec")
	t.Setenv("COQUITTS_BACKEND_COMMAND", "coqui-helper")
	t.Setenv("COQUITTS_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("COQUITTS_SYNTH_LOG_MAX_ROWS", "77")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Element.Model != "tts_models/en/vctk/vits" {
		t.Fatalf("expected model override, got %q", cfg.Element.Model)
	}
	if cfg.Element.Speaker != "p225" {
		t.Fatalf("expected speaker override, got %q", cfg.Element.Speaker)
	}
	if !cfg.Element.UseAcceleration {
		t.Fatal("expected use_acceleration override")
	}
	if cfg.Backend.Mode != "exec" || cfg.Backend.Command != "coqui-helper" {
		t.Fatalf("expected backend override, got %+v", cfg.Backend)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.SynthLog.MaxRows != 77 {
		t.Fatalf("expected max_rows override, got %d", cfg.SynthLog.MaxRows)
	}
}

func TestValidateRejectsBadBackendMode(t *testing.T) {
	t.Setenv("COQUITTS_BACKEND_MODE", "carrier-pigeon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRequiresExecCommand(t *testing.T) {
	t.Setenv("COQUITTS_BACKEND_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for missing command")
	}
}
