// Package config loads gpush settings from a YAML file and GPUSH_*
// environment variables through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/samzong/gpush/internal/github"
	"github.com/samzong/gpush/internal/gitutil"
	"github.com/spf13/viper"
)

// Config is the resolved configuration.
type Config struct {
	Repo           string `mapstructure:"repo"`
	Branch         string `mapstructure:"branch"`
	APIURL         string `mapstructure:"api_url"`
	Model          string `mapstructure:"model"`
	APIBase        string `mapstructure:"api_base"`
	PromptTemplate string `mapstructure:"prompt_template"`
	Timeout        int    `mapstructure:"timeout"`
	Concurrency    int    `mapstructure:"concurrency"`
	RateLimit      int    `mapstructure:"rate_limit"`
	StateDir       string `mapstructure:"state_dir"`
}

const (
	DefaultBranch         = "main"
	DefaultModel          = "gpt-4o-mini"
	DefaultPromptTemplate = "default"
	DefaultTimeout        = 30
	DefaultConcurrency    = 8
	DefaultRateLimit      = 10
	DefaultConfigName     = "config"
	DefaultConfigDir      = "gpush"
	EnvPrefix             = "GPUSH"
	stateFileName         = "state.db"
)

var defaults = map[string]any{
	"repo":            "",
	"branch":          DefaultBranch,
	"api_url":         "",
	"model":           DefaultModel,
	"api_base":        "",
	"prompt_template": DefaultPromptTemplate,
	"timeout":         DefaultTimeout,
	"concurrency":     DefaultConcurrency,
	"rate_limit":      DefaultRateLimit,
	"state_dir":       "",
}

var suggestedModels = []string{
	"gpt-4o-mini",
	"gpt-4o",
	"gpt-4.1-mini",
	"gpt-4.1",
}

// ErrUnknownKey is returned for a key that is not a configuration key.
var ErrUnknownKey = errors.New("unknown configuration key")

// Keys returns every configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func configHome() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to find home directory: %w", err)
	}
	return filepath.Join(home, ".config"), nil
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/gpush/config.yaml.
func DefaultConfigPath() (string, error) {
	base, err := configHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DefaultConfigDir, DefaultConfigName+".yaml"), nil
}

// InitConfig reads cfgFile, or the default path when empty, and creates the
// file with restrictive permissions when it does not exist.
func InitConfig(cfgFile string) error {
	configPath := cfgFile
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("unable to create configuration directory: %w", err)
		}
		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("unable to write configuration file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to access configuration file: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := os.Chmod(configPath, 0o600); err != nil {
		return fmt.Errorf("unable to set configuration file permissions: %w", err)
	}
	return nil
}

// GetConfig returns the current configuration.
func GetConfig() *Config {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		cfg = &Config{}
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = DefaultPromptTemplate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.RateLimit < 0 {
		cfg.RateLimit = DefaultRateLimit
	}
}

// SetConfigValue sets a value in memory. Call SaveConfig to persist it.
func SetConfigValue(key string, value interface{}) {
	viper.Set(key, value)
}

// SaveConfig saves the current configuration
func SaveConfig() error {
	if err := viper.WriteConfig(); err != nil {
		return err
	}
	if file := viper.ConfigFileUsed(); file != "" {
		return os.Chmod(file, 0o600)
	}
	return nil
}

// Get returns the string form of a configuration key.
func Get(key string) (string, error) {
	if _, ok := defaults[key]; !ok {
		return "", fmt.Errorf("%w: %s (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	return viper.GetString(key), nil
}

// Set validates and normalises value, stores it under key and saves the
// file.
func Set(key, value string) error {
	v, err := Normalize(key, value)
	if err != nil {
		return err
	}
	SetConfigValue(key, v)
	return SaveConfig()
}

// Normalize checks value for key and returns the form to store.
func Normalize(key, value string) (any, error) {
	if _, ok := defaults[key]; !ok {
		return nil, fmt.Errorf("%w: %s (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	value = strings.TrimSpace(value)

	switch key {
	case "repo":
		if value == "" {
			return "", nil
		}
		repo, err := github.ParseRepo(value)
		if err != nil {
			return nil, err
		}
		return repo.String(), nil
	case "branch":
		if err := gitutil.ValidateBranchName(value); err != nil {
			return nil, err
		}
		return value, nil
	case "timeout", "concurrency", "rate_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		if n < 0 || (n == 0 && key != "rate_limit") {
			return nil, fmt.Errorf("%s must be positive", key)
		}
		return n, nil
	case "model":
		if value == "" {
			return nil, errors.New("model must not be empty")
		}
	}
	return value, nil
}

// StatePath returns the path of the local state database, creating its
// directory.
func StatePath(cfg *Config) (string, error) {
	dir := cfg.StateDir
	if dir == "" {
		if file := viper.ConfigFileUsed(); file != "" {
			dir = filepath.Dir(file)
		} else {
			base, err := configHome()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(base, DefaultConfigDir)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("unable to create state directory: %w", err)
	}
	return filepath.Join(dir, stateFileName), nil
}

// GetSuggestedModels returns commonly used models; any name is accepted.
func GetSuggestedModels() []string {
	return suggestedModels
}
