package providers

import (
	"fmt"
	"strings"

	"github.com/meysamhadeli/kbchat/providers/contracts"
	"github.com/meysamhadeli/kbchat/providers/ollama"
	"github.com/meysamhadeli/kbchat/providers/openai"
	contracts_token "github.com/meysamhadeli/kbchat/token_management/contracts"
)

// AIProviderConfig selects and configures the chat completion backend.
type AIProviderConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
	Stream      bool    `mapstructure:"stream" yaml:"stream"`
	ApiKey      string  `mapstructure:"api_key" yaml:"api_key"`
}

// NewChatProvider returns the chat provider named by config.Provider.
func NewChatProvider(config *AIProviderConfig, tokenManagement contracts_token.ITokenManagement) (contracts.IChatAIProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("ai provider config is missing")
	}

	switch strings.ToLower(config.Provider) {
	case "openai", "":
		return openai.NewOpenAIChatProvider(&openai.OpenAIConfig{
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			Temperature:     config.Temperature,
			MaxTokens:       config.MaxTokens,
			ApiKey:          config.ApiKey,
			Stream:          config.Stream,
			TokenManagement: tokenManagement,
		}), nil
	case "ollama":
		return ollama.NewOllamaChatProvider(&ollama.OllamaConfig{
			BaseURL:         config.BaseURL,
			Model:           config.Model,
			Temperature:     config.Temperature,
			MaxTokens:       config.MaxTokens,
			TokenManagement: tokenManagement,
		}), nil
	default:
		return nil, fmt.Errorf("provider '%s' is not supported, use 'openai' or 'ollama'", config.Provider)
	}
}
