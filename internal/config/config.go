package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Reasoning Reasoning `yaml:"reasoning"`
	Email     Email     `yaml:"email"`
	Crawl     Crawl     `yaml:"crawl"`
	Scheduler Scheduler `yaml:"scheduler"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Reasoning struct {
	Provider    string `yaml:"provider"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Email struct {
	Enabled    bool     `yaml:"enabled"`
	APIKeyEnv  string   `yaml:"api_key_env"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

type Crawl struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type Scheduler struct {
	Enabled bool `yaml:"enabled"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Environment string `yaml:"environment"`
}

// ConfigDir returns the XDG config directory for intelwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "intelwatch")
}

// DataDir returns the XDG data directory for intelwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "intelwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/intelwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'intelwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Reasoning: Reasoning{
			Provider:    "openai",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "qwen2.5:7b",
			MaxTokens:   2048,
		},
		Email: Email{
			APIKeyEnv: "RESEND_API_KEY",
			From:      "IntelWatch <intel@resend.dev>",
		},
		Crawl:     Crawl{TimeoutSeconds: 30},
		Scheduler: Scheduler{Enabled: true},
		Server:    Server{Port: 8000},
		Logging:   Logging{Environment: "development"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// APIKey resolves the reasoning provider key from the configured env var.
func (r Reasoning) APIKey() string {
	if r.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(r.APIKeyEnv)
}

// APIKey resolves the email provider key from the configured env var.
func (e Email) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
