package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// SynthesisConfig bounds every generative backend call
type SynthesisConfig struct {
	// Disabled skips backend selection; every result comes from the fallback path
	Disabled      bool          `yaml:"disabled"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float32       `yaml:"temperature"`
	RatePerMinute int           `yaml:"rate_per_minute"`
}

// StoreConfig selects the finding store. Driver is one of memory, file or postgres.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type ReportConfig struct {
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
}

type ScannerConfig struct {
	DefaultRegion  string `yaml:"default_region"`
	DefaultProject string `yaml:"default_project"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	ModelCandidates  []string                  `yaml:"model_candidates"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
	Synthesis        SynthesisConfig           `yaml:"synthesis"`
	Store            StoreConfig               `yaml:"store"`
	Report           ReportConfig              `yaml:"report"`
	Scanner          ScannerConfig             `yaml:"scanner"`
	Logger           LoggerConfig              `yaml:"logger"`
}

// DefaultModelCandidates is the Gemini preference order probed at startup
var DefaultModelCandidates = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
	"gemini-pro-latest",
	"gemini-flash-latest",
}

// Default returns the configuration used when no file exists
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		SelectedProvider: "gemini",
		ModelCandidates:  append([]string(nil), DefaultModelCandidates...),
		Providers:        make(map[string]ProviderConfig),
		Synthesis: SynthesisConfig{
			Timeout:       30 * time.Second,
			MaxTokens:     2048,
			Temperature:   0.3,
			RatePerMinute: 60,
		},
		Store: StoreConfig{
			Driver: "file",
			Path:   filepath.Join(home, ".zte-adk", "findings.json"),
		},
		Report: ReportConfig{
			Dir: "reports",
		},
		Scanner: ScannerConfig{
			DefaultRegion: "us-central1",
		},
		Logger: LoggerConfig{
			Level: "INFO",
		},
	}
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".zte-adk")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// LoadConfig reads the config from the default location
func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads a YAML config file, filling unset fields from Default
// and applying environment overrides. A missing file is not an error.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	// an explicit empty list means only the selected model is probed
	if cfg.ModelCandidates == nil {
		cfg.ModelCandidates = append([]string(nil), DefaultModelCandidates...)
	}
	cfg.applyEnv()
	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(cfg, path)
}

func SaveConfigTo(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}

// Candidates returns the models to probe: the selected model first, then the
// configured candidates without duplicates
func (c *Config) Candidates() []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range append([]string{c.SelectedModel}, c.ModelCandidates...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

var providerKeyEnv = map[string][]string{
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

// applyEnv lets environment variables fill keys missing from the file
func (c *Config) applyEnv() {
	for provider, names := range providerKeyEnv {
		if c.GetAPIKey(provider) != "" {
			continue
		}
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				c.SetAPIKey(provider, v)
				break
			}
		}
	}
	if v := os.Getenv("ZTE_LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("ZTE_STORE_DSN"); v != "" {
		c.Store.Driver = "postgres"
		c.Store.DSN = v
	}
}
