package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meysamhadeli/kbchat/providers"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty directory and clears the environment variables LoadConfigs reads.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{
		"KBCHAT_THEME", "KBCHAT_LOG_LEVEL", "KBCHAT_PROVIDER",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "OPENAI_MAX_TOKENS", "OPENAI_TEMPERATURE",
		"DIFY_API_KEY", "DIFY_BASE_URL", "DIFY_KNOWLEDGE_BASE_ID",
	} {
		t.Setenv(name, "")
	}
	return t.TempDir()
}

func writeConfig(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigs_Defaults(t *testing.T) {
	cwd := isolate(t)

	cfg, err := LoadConfigs(nil, cwd)
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, "openai", cfg.AIProviderConfig.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AIProviderConfig.Model)
	assert.Equal(t, "https://api.dify.ai/v1", cfg.Dify.BaseURL)
	assert.Equal(t, 30, cfg.Dify.TimeoutSeconds)
	assert.Equal(t, DefaultConfig.Scan.IncludePatterns, cfg.Scan.IncludePatterns)
	assert.Equal(t, DefaultConfig.Scan.ExcludePatterns, cfg.Scan.ExcludePatterns)
	assert.Equal(t, []string{".gitignore", ".difyignore"}, cfg.Scan.IgnoreFiles)
	assert.Equal(t, int64(5*1024*1024), cfg.Scan.MaxFileSize)
	assert.Equal(t, ContextConfig{MaxTokens: 8000, WarningThreshold: 6000, ChunkTokens: 4000, LargeFileTokens: 4000}, *cfg.Context)
}

func TestLoadConfigs_FileInWorkingDirectory(t *testing.T) {
	cwd := isolate(t)
	path := writeConfig(t, cwd, "kbchat-config.yaml", `
log_level: debug
dify:
  api_key: file-key
  knowledge_base_id: kb-1
scan:
  include_patterns: ["docs/**"]
  max_file_size: 1024
context:
  max_tokens: 2000
`)

	cfg, err := LoadConfigs(nil, cwd)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "file-key", cfg.Dify.ApiKey)
	assert.Equal(t, "kb-1", cfg.Dify.KnowledgeBaseID)
	assert.Equal(t, []string{"docs/**"}, cfg.Scan.IncludePatterns)
	assert.Equal(t, int64(1024), cfg.Scan.MaxFileSize)
	assert.Equal(t, 2000, cfg.Context.MaxTokens)
	assert.Equal(t, 4000, cfg.Context.ChunkTokens)
	assert.Equal(t, DefaultConfig.Scan.ExcludePatterns, cfg.Scan.ExcludePatterns)
}

func TestLoadConfigs_JSONFileInHome(t *testing.T) {
	cwd := isolate(t)
	writeConfig(t, os.Getenv("HOME"), "kbchat-config.json", `{"ai_provider_config": {"provider": "ollama", "model": "llama3"}}`)

	cfg, err := LoadConfigs(nil, cwd)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.AIProviderConfig.Provider)
	assert.Equal(t, "llama3", cfg.AIProviderConfig.Model)
}

func TestLoadConfigs_Precedence(t *testing.T) {
	cwd := isolate(t)
	writeConfig(t, cwd, "kbchat-config.yml", `
ai_provider_config:
  model: file-model
dify:
  api_key: file-key
`)
	t.Setenv("DIFY_API_KEY", "env-key")
	t.Setenv("OPENAI_MODEL", "env-model")

	rootCmd := &cobra.Command{Use: "kbchat"}
	InitFlags(rootCmd)
	require.NoError(t, rootCmd.PersistentFlags().Set("model", "flag-model"))

	cfg, err := LoadConfigs(rootCmd, cwd)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Dify.ApiKey)
	assert.Equal(t, "flag-model", cfg.AIProviderConfig.Model)
	// unchanged flags keep the lower layers
	assert.Equal(t, "https://api.dify.ai/v1", cfg.Dify.BaseURL)
}

func TestLoadConfigs_InvalidFile(t *testing.T) {
	cwd := isolate(t)
	writeConfig(t, cwd, "kbchat-config.yaml", "scan: [unclosed")

	_, err := LoadConfigs(nil, cwd)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestValidate(t *testing.T) {
	cfg := Config{AIProviderConfig: &providers.AIProviderConfig{Provider: "openai"}, Dify: &DifyConfig{}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY is not configured")
	assert.Contains(t, err.Error(), "DIFY_API_KEY is not configured")

	cfg.AIProviderConfig.Provider = "ollama"
	cfg.Dify.ApiKey = "dataset-key"
	assert.NoError(t, cfg.Validate())

	cfg.AIProviderConfig = nil
	assert.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")
}

func TestGetConfigFileType(t *testing.T) {
	assert.Equal(t, "json", GetConfigFileType("kbchat-config.json"))
	assert.Equal(t, "yaml", GetConfigFileType("kbchat-config.yaml"))
	assert.Equal(t, "yaml", GetConfigFileType("kbchat-config.yml"))
	assert.Equal(t, "", GetConfigFileType("kbchat-config.toml"))
}

func TestWriteDefaultConfig(t *testing.T) {
	cwd := isolate(t)
	path := filepath.Join(cwd, ConfigFileName+".yaml")

	created, err := WriteDefaultConfig(path)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = WriteDefaultConfig(path)
	require.NoError(t, err)
	assert.False(t, created)

	cfg, err := LoadConfigs(nil, cwd)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "your-openai-api-key-here", cfg.AIProviderConfig.ApiKey)
	assert.Equal(t, "your-dify-api-key-here", cfg.Dify.ApiKey)
	assert.Equal(t, DefaultConfig.Scan.IncludePatterns, cfg.Scan.IncludePatterns)
	assert.Equal(t, *DefaultConfig.Context, *cfg.Context)

	// the shared defaults stay untouched
	assert.Empty(t, DefaultConfig.Dify.ApiKey)
	assert.Empty(t, DefaultConfig.AIProviderConfig.ApiKey)
}
