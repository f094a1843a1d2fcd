package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunker.MaxChars != 1200 {
		t.Fatalf("expected default chunk size 1200, got %d", cfg.Chunker.MaxChars)
	}
	if cfg.TTS.Rate != DefaultRate {
		t.Fatalf("expected default rate %d, got %d", DefaultRate, cfg.TTS.Rate)
	}
	if cfg.Output.Format != FormatWAV {
		t.Fatalf("expected default format wav, got %q", cfg.Output.Format)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdfbook.yaml")
	data := []byte("mode: save\nchunker:\n  max_chars: 500\ntts:\n  mode: mock\n  voice: Daniel\noutput:\n  format: mp3\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != ModeSave {
		t.Fatalf("expected mode save, got %q", cfg.Mode)
	}
	if cfg.Chunker.MaxChars != 500 {
		t.Fatalf("expected chunk size 500, got %d", cfg.Chunker.MaxChars)
	}
	if cfg.TTS.Voice != "Daniel" {
		t.Fatalf("expected voice override, got %q", cfg.TTS.Voice)
	}
	if cfg.Output.Format != FormatMP3 {
		t.Fatalf("expected format mp3, got %q", cfg.Output.Format)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PDFBOOK_MODE", "both")
	t.Setenv("PDFBOOK_CHUNKER_MAX_CHARS", "600")
	t.Setenv("PDFBOOK_TTS_MODE", "exec")
	t.Setenv("PDFBOOK_TTS_COMMAND", "piper --model en_US")
	t.Setenv("PDFBOOK_TTS_RATE", "200")
	t.Setenv("PDFBOOK_OUTPUT_DIR", "./out")
	t.Setenv("PDFBOOK_JOB_STORE_RETENTION_MODE", "ephemeral")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != ModeBoth {
		t.Fatalf("expected mode override, got %q", cfg.Mode)
	}
	if cfg.Chunker.MaxChars != 600 {
		t.Fatalf("expected chunk size override, got %d", cfg.Chunker.MaxChars)
	}
	if cfg.TTS.Mode != "exec" || cfg.TTS.Command != "piper --model en_US" {
		t.Fatalf("expected tts exec override, got %q %q", cfg.TTS.Mode, cfg.TTS.Command)
	}
	if cfg.TTS.Rate != 200 {
		t.Fatalf("expected rate override, got %d", cfg.TTS.Rate)
	}
	if cfg.Output.Dir != "./out" {
		t.Fatalf("expected output dir override, got %q", cfg.Output.Dir)
	}
	if cfg.JobStore.RetentionMode != "ephemeral" {
		t.Fatalf("expected retention override, got %q", cfg.JobStore.RetentionMode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunker.MaxChars = 0 }},
		{"negative chunk size", func(c *Config) { c.Chunker.MaxChars = -5 }},
		{"unknown mode", func(c *Config) { c.Mode = "shout" }},
		{"unknown tts mode", func(c *Config) { c.TTS.Mode = "cloud" }},
		{"exec without command", func(c *Config) { c.TTS.Mode = "exec"; c.TTS.Command = "" }},
		{"rate too low", func(c *Config) { c.TTS.Rate = 40 }},
		{"rate too high", func(c *Config) { c.TTS.Rate = 500 }},
		{"unknown format", func(c *Config) { c.Output.Format = "ogg" }},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }},
		{"unknown retention", func(c *Config) { c.JobStore.RetentionMode = "weekly" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}
