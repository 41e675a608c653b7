package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName is used for the XDG config lookup.
const AppName = "coincataloger"

const (
	DefaultPicturesDir = "pictures"
	DefaultOutputFile  = "gallery/coins_metadata.json"
	DefaultBackupDir   = "gallery/backups"
	DefaultProvider    = "anthropic"
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 90 * time.Second
	// DefaultCostPerCoin is the rough USD cost of one two-image call.
	DefaultCostPerCoin = 0.015
	DefaultCropSize    = 1848
	DefaultCropQuality = 95
	DefaultServeAddr   = ":8888"
)

// Providers lists the supported recognition backends.
var Providers = []string{"anthropic", "openai", "ollama", "gemini"}

// Config holds every setting of a run. It is built once at startup and
// passed down explicitly.
type Config struct {
	PicturesDir string   `yaml:"pictures_dir"`
	OutputFile  string   `yaml:"output_file"`
	BackupDir   string   `yaml:"backup_dir"`
	Extensions  []string `yaml:"extensions"`

	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	CostPerCoin float64       `yaml:"cost_per_coin"`

	Crop  Crop  `yaml:"crop"`
	Serve Serve `yaml:"serve"`

	// Credentials come from the environment only.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	OllamaURL       string `yaml:"-"`
	EditPassword    string `yaml:"-"`

	// envModels holds <PROVIDER>_MODEL values keyed by provider name.
	envModels map[string]string
}

// Crop configures the square-crop utility.
type Crop struct {
	Size    int `yaml:"size"`
	Quality int `yaml:"quality"`
	Workers int `yaml:"workers"`
}

// Serve configures the gallery server.
type Serve struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PicturesDir: DefaultPicturesDir,
		OutputFile:  DefaultOutputFile,
		BackupDir:   DefaultBackupDir,
		Extensions:  []string{".jpg", ".jpeg", ".png"},
		Provider:    DefaultProvider,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
		CostPerCoin: DefaultCostPerCoin,
		Crop: Crop{
			Size:    DefaultCropSize,
			Quality: DefaultCropQuality,
			Workers: 4,
		},
		Serve: Serve{Addr: DefaultServeAddr},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// the XDG config file when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if found, err := xdg.SearchConfigFile(AppName + "/config.yaml"); err == nil {
			path = found
		}
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment settings using getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if provider := getenv("CATALOGING_PROVIDER"); provider != "" {
		c.Provider = provider
	}
	c.AnthropicAPIKey = getenv("ANTHROPIC_API_KEY")
	c.OpenAIAPIKey = getenv("OPENAI_API_KEY")
	c.GeminiAPIKey = getenv("GEMINI_API_KEY")
	c.OllamaURL = getenv("OLLAMA_URL")
	if c.OllamaURL == "" {
		c.OllamaURL = getenv("OLLAMA_HOST")
	}
	c.EditPassword = getenv("EDIT_PASSWORD")

	c.envModels = make(map[string]string, len(Providers))
	for _, p := range Providers {
		if model := getenv(strings.ToUpper(p) + "_MODEL"); model != "" {
			c.envModels[p] = model
		}
	}
}

// ResolvedModel returns the explicit model, else the <PROVIDER>_MODEL
// environment value for the final provider, else the provider's default.
func (c Config) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	if model := c.envModels[c.Provider]; model != "" {
		return model
	}
	return DefaultModel(c.Provider)
}

// DefaultModel returns the default model for provider
func DefaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "openai":
		return "gpt-4o"
	case "ollama":
		return "mistral-small3.2:24b"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return ""
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error

	if !isProvider(c.Provider) {
		errs = append(errs, fmt.Errorf("unsupported provider: %s (supported: %s)", c.Provider, strings.Join(Providers, ", ")))
	}
	if c.PicturesDir == "" {
		errs = append(errs, errors.New("pictures_dir is required"))
	}
	if c.OutputFile == "" {
		errs = append(errs, errors.New("output_file is required"))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("at least one image extension is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, errors.New("max_tokens must be positive"))
	}
	if c.Crop.Size <= 0 {
		errs = append(errs, errors.New("crop.size must be positive"))
	}
	if c.Crop.Quality < 1 || c.Crop.Quality > 100 {
		errs = append(errs, errors.New("crop.quality must be between 1 and 100"))
	}

	return errors.Join(errs...)
}

func isProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}
