package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 4601 {
		t.Errorf("Server.MCPPort = %d, want 4601", cfg.Server.MCPPort)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "llama3" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Chunking.MaxChars != 500 || cfg.Chunking.OverlapChars != 50 {
		t.Errorf("Chunking = %+v, want 500/50", cfg.Chunking)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestFileValuesOverrideDefaults(t *testing.T) {
	path := writeTempConfig(t, `{
  "server.port": 9000,
  "ollama.chat_model": "mistral",
  "chunking.max_chars": "800"
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Ollama.ChatModel != "mistral" {
		t.Errorf("Ollama.ChatModel = %q, want mistral", cfg.Ollama.ChatModel)
	}
	// Integer keys also accept string-encoded values.
	if cfg.Chunking.MaxChars != 800 {
		t.Errorf("Chunking.MaxChars = %d, want 800", cfg.Chunking.MaxChars)
	}
	// Untouched keys keep their defaults.
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q", cfg.Ollama.EmbedModel)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `{"ollama.base_url": "http://filehost:11434"}`)

	t.Setenv("NOTEWELL_OLLAMA_BASE_URL", "http://envhost:11434")
	t.Setenv("NOTEWELL_SERVER_PORT", "7777")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ollama.BaseURL != "http://envhost:11434" {
		t.Errorf("Ollama.BaseURL = %q, want env value", cfg.Ollama.BaseURL)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777", cfg.Server.Port)
	}
}

func TestEnvInvalidIntegerKeepsDefault(t *testing.T) {
	t.Setenv("NOTEWELL_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want default 4600", cfg.Server.Port)
	}
}

func TestBadFileValueIsAnError(t *testing.T) {
	path := writeTempConfig(t, `{"server.port": "abc"}`)
	if _, err := loadWith(newFileBackend(path)); err == nil {
		t.Error("expected error for non-integer port")
	}
}

func TestFileBackend_SetAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	b := newFileBackend(path)
	if err := b.SetString("ollama.chat_model", "gemma"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetInt("server.port", 8080); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ollama.ChatModel != "gemma" || cfg.Server.Port != 8080 {
		t.Errorf("reloaded config = %+v", cfg)
	}
}

func TestShowAllCoversEverySpec(t *testing.T) {
	infos := ShowAll(defaults())
	if len(infos) != len(ValidKeys()) {
		t.Fatalf("ShowAll returned %d entries, want %d", len(infos), len(ValidKeys()))
	}
	for _, info := range infos {
		if info.Value == "" {
			t.Errorf("key %s has empty default", info.Key)
		}
	}
}
