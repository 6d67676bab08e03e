// Package config loads notewell configuration from a JSON file at
// $XDG_CONFIG_HOME/notewell/config.json, with NOTEWELL_* environment
// variables taking precedence over file values.
package config

import (
	"os"
	"path/filepath"
)

type Config struct {
	Server   ServerConfig
	Ollama   OllamaConfig
	Storage  StorageConfig
	Chunking ChunkingConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type ChunkingConfig struct {
	MaxChars     int
	OverlapChars int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPPort: 4601,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			MaxChars:     500,
			OverlapChars: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the config file and applies environment
// overrides on top.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "notewell-data"
		}
	}
	return filepath.Join(dir, "notewell")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "notewell", "config.json")
}
