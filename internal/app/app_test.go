package app

import (
	"testing"

	"live-transcription-engine/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Recognizer.Mock = true
	cfg.Token.StaticToken = "tok"
	return cfg
}

func TestNew_WiresComponents(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Orchestrator == nil {
		t.Fatal("expected orchestrator to be wired")
	}

	st := a.Orchestrator.Snapshot()
	if st.Active {
		t.Error("no session should be active before start")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Recognizer.Endpoint = ""

	if _, err := New(cfg); err == nil {
		t.Error("expected validation error for empty endpoint")
	}
}

func TestNew_RequiresTokenSource(t *testing.T) {
	cfg := testConfig()
	cfg.Token.StaticToken = ""
	cfg.Token.IssuerURL = ""

	if _, err := New(cfg); err == nil {
		t.Error("expected error when no token source is configured")
	}
}

func TestBuildSource(t *testing.T) {
	cfg := testConfig()

	cfg.Audio.Source = "tone"
	if _, err := buildSource(cfg); err != nil {
		t.Errorf("tone source: %v", err)
	}

	cfg.Audio.Source = "wav"
	cfg.Audio.WAVPath = "fixture.wav"
	if _, err := buildSource(cfg); err != nil {
		t.Errorf("wav source: %v", err)
	}

	cfg.Audio.Source = "alsa"
	if _, err := buildSource(cfg); err == nil {
		t.Error("expected error for unknown source")
	}
}
