package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, "main", DefaultBranch)
	assert.Equal(t, "gpt-4o-mini", DefaultModel)
	assert.Equal(t, "config", DefaultConfigName)
	assert.Equal(t, "gpush", DefaultConfigDir)
	assert.Equal(t, "default", DefaultPromptTemplate)
	assert.Equal(t, "GPUSH", EnvPrefix)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []string{
		"api_base", "api_url", "branch", "concurrency", "model",
		"prompt_template", "rate_limit", "repo", "state_dir", "timeout",
	}, Keys())
}

func TestSetConfigValue(t *testing.T) {
	viper.Reset()

	SetConfigValue("repo", "o/r")
	assert.Equal(t, "o/r", viper.GetString("repo"))

	SetConfigValue("concurrency", 4)
	assert.Equal(t, 4, viper.GetInt("concurrency"))
}

func TestInitConfig_CreateNewConfigFile(t *testing.T) {
	viper.Reset()
	configFile := filepath.Join(t.TempDir(), "nested", "fresh.yaml")

	require.NoError(t, InitConfig(configFile))
	assert.FileExists(t, configFile)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(configFile)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	cfg := GetConfig()
	assert.Equal(t, DefaultBranch, cfg.Branch)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestInitConfig_ExistingConfigFile(t *testing.T) {
	viper.Reset()
	configFile := filepath.Join(t.TempDir(), "existing.yaml")

	existing := `repo: "samzong/gpush"
branch: "dev"
model: "gpt-4o"
api_url: "https://ghe.example.com/api/v3"
concurrency: 2`
	require.NoError(t, os.WriteFile(configFile, []byte(existing), 0644))

	require.NoError(t, InitConfig(configFile))

	cfg := GetConfig()
	assert.Equal(t, "samzong/gpush", cfg.Repo)
	assert.Equal(t, "dev", cfg.Branch)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.APIURL)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, DefaultPromptTemplate, cfg.PromptTemplate)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(configFile)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestInitConfig_DefaultPathUsesXDG(t *testing.T) {
	viper.Reset()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	require.NoError(t, InitConfig(""))
	assert.FileExists(t, filepath.Join(xdg, "gpush", "config.yaml"))
}

func TestInitConfig_DefaultPathFallsBackToHome(t *testing.T) {
	viper.Reset()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	p, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "gpush", "config.yaml"), p)
}

func TestInitConfig_InvalidConfigFile(t *testing.T) {
	viper.Reset()
	configFile := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("repo: [broken"), 0644))

	err := InitConfig(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read configuration file")
}

func TestInitConfig_EnvironmentVariables(t *testing.T) {
	viper.Reset()
	configFile := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`branch: "dev"`), 0644))

	t.Setenv("GPUSH_BRANCH", "release")
	t.Setenv("GPUSH_MODEL", "env-model")

	require.NoError(t, InitConfig(configFile))
	assert.Equal(t, "release", GetConfig().Branch)
	assert.Equal(t, "env-model", GetConfig().Model)
}

func TestSetAndSave(t *testing.T) {
	viper.Reset()
	configFile := filepath.Join(t.TempDir(), "save.yaml")
	require.NoError(t, InitConfig(configFile))

	require.NoError(t, Set("repo", "https://github.com/samzong/gpush.git"))
	require.NoError(t, Set("concurrency", "3"))

	content, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "samzong/gpush")
	assert.NotContains(t, string(content), "https://")

	v, err := Get("concurrency")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		want    any
		wantErr string
	}{
		{"repo url", "repo", "git@github.com:o/r.git", "o/r", ""},
		{"repo empty clears", "repo", "", "", ""},
		{"repo invalid", "repo", "not-a-repo", nil, "repo"},
		{"branch ok", "branch", "feature/x", "feature/x", ""},
		{"branch invalid", "branch", "a..b", nil, "'..'"},
		{"concurrency", "concurrency", "4", 4, ""},
		{"concurrency zero", "concurrency", "0", nil, "must be positive"},
		{"rate limit zero disables", "rate_limit", "0", 0, ""},
		{"timeout not a number", "timeout", "soon", nil, "must be an integer"},
		{"model empty", "model", " ", nil, "must not be empty"},
		{"unknown key", "role", "x", nil, "unknown configuration key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.key, tt.value)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGet_UnknownKey(t *testing.T) {
	_, err := Get("api_key")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestStatePath(t *testing.T) {
	viper.Reset()
	dir := filepath.Join(t.TempDir(), "state")

	p, err := StatePath(&Config{StateDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "state.db"), p)
	assert.DirExists(t, dir)
}

func TestGetSuggestedModels(t *testing.T) {
	assert.Contains(t, GetSuggestedModels(), DefaultModel)
}
