package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meysamhadeli/kbchat/providers/contracts"
	"github.com/meysamhadeli/kbchat/providers/models"
	ollama_models "github.com/meysamhadeli/kbchat/providers/ollama/models"
	contracts_token "github.com/meysamhadeli/kbchat/token_management/contracts"
)

// OllamaConfig implements the chat provider interface for a local Ollama server.
type OllamaConfig struct {
	BaseURL         string
	Model           string
	Temperature     float32
	MaxTokens       int
	TokenManagement contracts_token.ITokenManagement
	HTTPClient      *http.Client
}

const (
	defaultBaseURL = "http://localhost:11434/api"
)

// NewOllamaChatProvider initializes a new Ollama provider.
func NewOllamaChatProvider(config *OllamaConfig) contracts.IChatAIProvider {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" || strings.Contains(baseURL, "api.openai.com") {
		baseURL = defaultBaseURL
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaConfig{
		BaseURL:         baseURL,
		Model:           config.Model,
		Temperature:     config.Temperature,
		MaxTokens:       config.MaxTokens,
		TokenManagement: config.TokenManagement,
		HTTPClient:      client,
	}
}

func (ollamaProvider *OllamaConfig) ChatCompletionRequest(ctx context.Context, userInput string, prompt string) <-chan models.StreamResponse {
	responseChan := make(chan models.StreamResponse)
	var markdownBuffer strings.Builder // Buffer to accumulate content until newline

	go func() {
		defer close(responseChan)

		reqBody := ollama_models.OllamaChatCompletionRequest{
			Model: ollamaProvider.Model,
			Messages: []ollama_models.Message{
				{Role: "system", Content: prompt},
				{Role: "user", Content: userInput},
			},
			Stream: true,
			Options: &ollama_models.Options{
				Temperature: ollamaProvider.Temperature,
				NumPredict:  ollamaProvider.MaxTokens,
			},
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			responseChan <- models.StreamResponse{Err: fmt.Errorf("error marshalling request body: %w", err)}
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/chat", ollamaProvider.BaseURL), bytes.NewBuffer(jsonData))
		if err != nil {
			responseChan <- models.StreamResponse{Err: fmt.Errorf("error creating request: %w", err)}
			return
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := ollamaProvider.HTTPClient.Do(req)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				responseChan <- models.StreamResponse{Err: fmt.Errorf("request canceled: %w", err)}
				return
			}
			responseChan <- models.StreamResponse{Err: fmt.Errorf("error sending request: %w", err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			var apiError models.AIError
			if err := json.Unmarshal(body, &apiError); err != nil || apiError.Error.Message == "" {
				responseChan <- models.StreamResponse{Err: fmt.Errorf("API request failed with status code '%d' - %s", resp.StatusCode, strings.TrimSpace(string(body)))}
				return
			}

			responseChan <- models.StreamResponse{Err: fmt.Errorf("API request failed with status code '%d' - %s", resp.StatusCode, apiError.Error.Message)}
			return
		}

		reader := bufio.NewReader(resp.Body)

		for {
			line, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				responseChan <- models.StreamResponse{Err: fmt.Errorf("error reading stream: %w", err)}
				return
			}

			if trimmed := strings.TrimSpace(line); trimmed != "" {
				var response ollama_models.OllamaChatCompletionResponse
				if jsonErr := json.Unmarshal([]byte(trimmed), &response); jsonErr != nil {
					responseChan <- models.StreamResponse{Err: fmt.Errorf("error unmarshalling chunk: %w", jsonErr)}
					return
				}

				if len(response.Message.Content) > 0 {
					content := response.Message.Content
					markdownBuffer.WriteString(content)

					// Send chunk if it contains a newline, and then reset the buffer
					if strings.Contains(content, "\n") {
						responseChan <- models.StreamResponse{Content: markdownBuffer.String()}
						markdownBuffer.Reset()
					}
				}

				if response.Done {
					if markdownBuffer.Len() > 0 {
						responseChan <- models.StreamResponse{Content: markdownBuffer.String()}
						markdownBuffer.Reset()
					}

					if response.PromptEvalCount > 0 && ollamaProvider.TokenManagement != nil {
						ollamaProvider.TokenManagement.UsedTokens(response.PromptEvalCount, response.EvalCount)
					}

					responseChan <- models.StreamResponse{Done: true}
					return
				}
			}

			if err == io.EOF {
				break
			}
		}

		// Stream ended without a done marker
		if markdownBuffer.Len() > 0 {
			responseChan <- models.StreamResponse{Content: markdownBuffer.String()}
		}
		responseChan <- models.StreamResponse{Done: true}
	}()

	return responseChan
}
