package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meysamhadeli/kbchat/providers"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the base name (without extension) looked up in the working and home directories.
const ConfigFileName = "kbchat-config"

// Config represents the structure of the configuration file
type Config struct {
	Version          string                      `mapstructure:"version" yaml:"version"`
	Theme            string                      `mapstructure:"theme" yaml:"theme"`
	LogLevel         string                      `mapstructure:"log_level" yaml:"log_level"`
	AIProviderConfig *providers.AIProviderConfig `mapstructure:"ai_provider_config" yaml:"ai_provider_config"`
	Dify             *DifyConfig                 `mapstructure:"dify" yaml:"dify"`
	Scan             *ScanConfig                 `mapstructure:"scan" yaml:"scan"`
	Context          *ContextConfig              `mapstructure:"context" yaml:"context"`

	// ConfigFile is the file the values were read from, empty when only defaults were used.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// DifyConfig holds the knowledge base connection settings.
type DifyConfig struct {
	ApiKey          string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	KnowledgeBaseID string `mapstructure:"knowledge_base_id" yaml:"knowledge_base_id"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ScanConfig controls which files the scanner accepts.
type ScanConfig struct {
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	IgnoreFiles     []string `mapstructure:"ignore_files" yaml:"ignore_files"`
	MaxFileSize     int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	IncludeHidden   bool     `mapstructure:"include_hidden" yaml:"include_hidden"`
}

// ContextConfig holds the token budget used when planning uploads and prompts.
type ContextConfig struct {
	MaxTokens        int `mapstructure:"max_tokens" yaml:"max_tokens"`
	WarningThreshold int `mapstructure:"warning_threshold" yaml:"warning_threshold"`
	ChunkTokens      int `mapstructure:"chunk_tokens" yaml:"chunk_tokens"`
	LargeFileTokens  int `mapstructure:"large_file_tokens" yaml:"large_file_tokens"`
}

// DefaultConfig values
var DefaultConfig = Config{
	Version:  "0.3.0",
	Theme:    "dracula",
	LogLevel: "warn",
	AIProviderConfig: &providers.AIProviderConfig{
		Provider:  "openai",
		BaseURL:   "https://api.openai.com/v1",
		Model:     "gpt-4o-mini",
		MaxTokens: 4000,
		Stream:    true,
		ApiKey:    "",
	},
	Dify: &DifyConfig{
		ApiKey:          "",
		BaseURL:         "https://api.dify.ai/v1",
		KnowledgeBaseID: "",
		TimeoutSeconds:  30,
	},
	Scan: &ScanConfig{
		IncludePatterns: []string{
			"*.{js,ts,tsx,jsx,py,java,go,rs,php,rb}",
			"*.{md,txt,json,yml,yaml}",
		},
		ExcludePatterns: []string{
			"node_modules/**",
			"dist/**",
			"build/**",
			".git/**",
			"*.test.{js,ts,tsx,jsx}",
			"*.spec.{js,ts,tsx,jsx}",
			"*.min.js",
			"*.d.ts",
		},
		IgnoreFiles:   []string{".gitignore", ".difyignore"},
		MaxFileSize:   5 * 1024 * 1024,
		IncludeHidden: false,
	},
	Context: &ContextConfig{
		MaxTokens:        8000,
		WarningThreshold: 6000,
		ChunkTokens:      4000,
		LargeFileTokens:  4000,
	},
}

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// LoadConfigs builds the configuration from defaults, config file, environment variables and flags,
// in increasing order of precedence. Every call uses a fresh viper instance.
func LoadConfigs(rootCmd *cobra.Command, cwd string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	bindEnv(v)

	configFile, err := resolveConfigFile(cwd)
	if err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if ext := GetConfigFileType(configFile); ext != "" {
			v.SetConfigType(ext)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	if rootCmd != nil {
		bindFlags(v, rootCmd)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.ConfigFile = configFile

	return &config, nil
}

// resolveConfigFile returns the explicit --config file, or the first kbchat-config file found in
// cwd and then in the home directory. An empty result means defaults only.
func resolveConfigFile(cwd string) (string, error) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return "", fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		return cfgFile, nil
	}

	dirs := []string{cwd}
	if home, err := os.UserHomeDir(); err == nil && home != cwd {
		dirs = append(dirs, home)
	}

	for _, dir := range dirs {
		for _, ext := range []string{"yaml", "yml", "json"} {
			candidate := filepath.Join(dir, fmt.Sprintf("%s.%s", ConfigFileName, ext))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}

	return "", nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", DefaultConfig.Version)
	v.SetDefault("theme", DefaultConfig.Theme)
	v.SetDefault("log_level", DefaultConfig.LogLevel)
	v.SetDefault("ai_provider_config.provider", DefaultConfig.AIProviderConfig.Provider)
	v.SetDefault("ai_provider_config.base_url", DefaultConfig.AIProviderConfig.BaseURL)
	v.SetDefault("ai_provider_config.model", DefaultConfig.AIProviderConfig.Model)
	v.SetDefault("ai_provider_config.max_tokens", DefaultConfig.AIProviderConfig.MaxTokens)
	v.SetDefault("ai_provider_config.temperature", DefaultConfig.AIProviderConfig.Temperature)
	v.SetDefault("ai_provider_config.stream", DefaultConfig.AIProviderConfig.Stream)
	v.SetDefault("ai_provider_config.api_key", DefaultConfig.AIProviderConfig.ApiKey)
	v.SetDefault("dify.api_key", DefaultConfig.Dify.ApiKey)
	v.SetDefault("dify.base_url", DefaultConfig.Dify.BaseURL)
	v.SetDefault("dify.knowledge_base_id", DefaultConfig.Dify.KnowledgeBaseID)
	v.SetDefault("dify.timeout_seconds", DefaultConfig.Dify.TimeoutSeconds)
	v.SetDefault("scan.include_patterns", DefaultConfig.Scan.IncludePatterns)
	v.SetDefault("scan.exclude_patterns", DefaultConfig.Scan.ExcludePatterns)
	v.SetDefault("scan.ignore_files", DefaultConfig.Scan.IgnoreFiles)
	v.SetDefault("scan.max_file_size", DefaultConfig.Scan.MaxFileSize)
	v.SetDefault("scan.include_hidden", DefaultConfig.Scan.IncludeHidden)
	v.SetDefault("context.max_tokens", DefaultConfig.Context.MaxTokens)
	v.SetDefault("context.warning_threshold", DefaultConfig.Context.WarningThreshold)
	v.SetDefault("context.chunk_tokens", DefaultConfig.Context.ChunkTokens)
	v.SetDefault("context.large_file_tokens", DefaultConfig.Context.LargeFileTokens)
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("theme", "KBCHAT_THEME")
	_ = v.BindEnv("log_level", "KBCHAT_LOG_LEVEL")
	_ = v.BindEnv("ai_provider_config.provider", "KBCHAT_PROVIDER")
	_ = v.BindEnv("ai_provider_config.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("ai_provider_config.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("ai_provider_config.model", "OPENAI_MODEL")
	_ = v.BindEnv("ai_provider_config.max_tokens", "OPENAI_MAX_TOKENS")
	_ = v.BindEnv("ai_provider_config.temperature", "OPENAI_TEMPERATURE")
	_ = v.BindEnv("dify.api_key", "DIFY_API_KEY")
	_ = v.BindEnv("dify.base_url", "DIFY_BASE_URL")
	_ = v.BindEnv("dify.knowledge_base_id", "DIFY_KNOWLEDGE_BASE_ID")
}

// bindFlags binds the CLI flags to configuration values. Only flags the user actually set
// override lower layers.
func bindFlags(v *viper.Viper, rootCmd *cobra.Command) {
	bindings := map[string]string{
		"theme":                        "theme",
		"log_level":                    "log_level",
		"ai_provider_config.provider":  "provider",
		"ai_provider_config.base_url":  "base_url",
		"ai_provider_config.model":     "model",
		"ai_provider_config.api_key":   "api_key",
		"dify.api_key":                 "dify_api_key",
		"dify.base_url":                "dify_base_url",
		"dify.knowledge_base_id":       "knowledge_base_id",
		"scan.max_file_size":           "max_file_size",
		"scan.include_hidden":          "include_hidden",
		"scan.include_patterns":        "include",
		"scan.exclude_patterns":        "exclude",
	}

	for key, name := range bindings {
		flag := rootCmd.PersistentFlags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		_ = v.BindPFlag(key, flag)
	}
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Specifies the path to a configuration file (JSON or YAML) that contains all the settings for the application.")

	rootCmd.PersistentFlags().String("theme", DefaultConfig.Theme, "Set the chroma theme used to render answers (e.g., 'dracula', 'monokai', 'github').")
	rootCmd.PersistentFlags().String("log_level", DefaultConfig.LogLevel, "Log level for diagnostics written to stderr (debug, info, warn, error).")

	rootCmd.PersistentFlags().String("provider", DefaultConfig.AIProviderConfig.Provider, "The name of the chat provider ('openai' or 'ollama').")
	rootCmd.PersistentFlags().String("base_url", DefaultConfig.AIProviderConfig.BaseURL, "The base URL of the chat provider.")
	rootCmd.PersistentFlags().String("model", DefaultConfig.AIProviderConfig.Model, "The name of the model used for chat completions.")
	rootCmd.PersistentFlags().String("api_key", DefaultConfig.AIProviderConfig.ApiKey, "The API key used to authenticate with the chat provider.")

	rootCmd.PersistentFlags().String("dify_api_key", DefaultConfig.Dify.ApiKey, "The Dify dataset API key.")
	rootCmd.PersistentFlags().String("dify_base_url", DefaultConfig.Dify.BaseURL, "The base URL of the Dify API.")
	rootCmd.PersistentFlags().String("knowledge_base_id", DefaultConfig.Dify.KnowledgeBaseID, "The knowledge base (dataset) used for chat and uploads.")

	rootCmd.PersistentFlags().Int64("max_file_size", DefaultConfig.Scan.MaxFileSize, "Maximum size in bytes of a file accepted by the scanner.")
	rootCmd.PersistentFlags().Bool("include_hidden", DefaultConfig.Scan.IncludeHidden, "Include hidden files and directories when scanning.")
	rootCmd.PersistentFlags().StringSlice("include", nil, "Glob pattern of files to include (repeatable, replaces configured include patterns).")
	rootCmd.PersistentFlags().StringSlice("exclude", nil, "Glob pattern of files to exclude (repeatable, replaces configured exclude patterns).")

	rootCmd.Flags().BoolP("version", "v", false, "Specifies the version of the application.")
}

// Validate checks the settings required to talk to the remote services.
func (c *Config) Validate() error {
	var errs []error

	if c.AIProviderConfig == nil || (c.AIProviderConfig.ApiKey == "" && c.AIProviderConfig.Provider != "ollama") {
		errs = append(errs, errors.New("OPENAI_API_KEY is not configured"))
	}
	if c.Dify == nil || c.Dify.ApiKey == "" {
		errs = append(errs, errors.New("DIFY_API_KEY is not configured"))
	}

	return errors.Join(errs...)
}

// GetConfigFileType returns the type of the configuration file based on its extension
func GetConfigFileType(filename string) string {
	if strings.HasSuffix(filename, ".json") {
		return "json"
	} else if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		return "yaml"
	}
	return ""
}

// WriteDefaultConfig writes the default configuration as YAML. An existing file is left untouched.
func WriteDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}

	template := DefaultConfig
	template.AIProviderConfig = &providers.AIProviderConfig{
		Provider:  DefaultConfig.AIProviderConfig.Provider,
		BaseURL:   DefaultConfig.AIProviderConfig.BaseURL,
		Model:     DefaultConfig.AIProviderConfig.Model,
		MaxTokens: DefaultConfig.AIProviderConfig.MaxTokens,
		Stream:    DefaultConfig.AIProviderConfig.Stream,
		ApiKey:    "your-openai-api-key-here",
	}
	dify := *DefaultConfig.Dify
	dify.ApiKey = "your-dify-api-key-here"
	dify.KnowledgeBaseID = "your-knowledge-base-id"
	template.Dify = &dify

	data, err := yaml.Marshal(&template)
	if err != nil {
		return false, fmt.Errorf("failed to encode default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return true, nil
}
