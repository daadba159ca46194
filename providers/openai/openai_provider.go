package openai

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
	openai_models "github.com/meysamhadeli/kbchat/providers/openai/models"
	contracts_token "github.com/meysamhadeli/kbchat/token_management/contracts"
)

// OpenAIConfig implements the chat provider interface for OpenAI compatible APIs.
type OpenAIConfig struct {
	BaseURL         string
	Model           string
	Temperature     float32
	MaxTokens       int
	ApiKey          string
	Stream          bool
	TokenManagement contracts_token.ITokenManagement
	HTTPClient      *http.Client
}

const (
	defaultBaseURL = "https://api.openai.com/v1"
	dataPrefix     = "data: "
	doneMarker     = "[DONE]"
)

// NewOpenAIChatProvider initializes a new OpenAI provider.
func NewOpenAIChatProvider(config *OpenAIConfig) contracts.IChatAIProvider {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIConfig{
		BaseURL:         baseURL,
		Model:           config.Model,
		Temperature:     config.Temperature,
		MaxTokens:       config.MaxTokens,
		ApiKey:          config.ApiKey,
		Stream:          config.Stream,
		TokenManagement: config.TokenManagement,
		HTTPClient:      client,
	}
}

func (openAIProvider *OpenAIConfig) ChatCompletionRequest(ctx context.Context, userInput string, prompt string) <-chan models.StreamResponse {
	responseChan := make(chan models.StreamResponse)

	go func() {
		defer close(responseChan)

		reqBody := openai_models.ChatCompletionRequest{
			Model: openAIProvider.Model,
			Messages: []models.Message{
				{Role: "system", Content: prompt},
				{Role: "user", Content: userInput},
			},
			Stream:      openAIProvider.Stream,
			Temperature: openAIProvider.Temperature,
			MaxTokens:   openAIProvider.MaxTokens,
		}
		if openAIProvider.Stream {
			reqBody.StreamOptions = &openai_models.StreamOptions{IncludeUsage: true}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			responseChan <- models.StreamResponse{Err: fmt.Errorf("error marshalling request body: %w", err)}
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/chat/completions", openAIProvider.BaseURL), bytes.NewBuffer(jsonData))
		if err != nil {
			responseChan <- models.StreamResponse{Err: fmt.Errorf("error creating request: %w", err)}
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", openAIProvider.ApiKey))

		resp, err := openAIProvider.HTTPClient.Do(req)
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

		if !openAIProvider.Stream {
			openAIProvider.handleBlockingResponse(resp.Body, responseChan)
			return
		}

		openAIProvider.handleStreamResponse(resp.Body, responseChan)
	}()

	return responseChan
}

func (openAIProvider *OpenAIConfig) handleBlockingResponse(body io.Reader, responseChan chan<- models.StreamResponse) {
	var response openai_models.ChatCompletionResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		responseChan <- models.StreamResponse{Err: fmt.Errorf("error decoding response: %w", err)}
		return
	}

	openAIProvider.recordUsage(response.Usage)

	if len(response.Choices) > 0 {
		responseChan <- models.StreamResponse{Content: response.Choices[0].Message.Content}
	}
	responseChan <- models.StreamResponse{Done: true}
}

func (openAIProvider *OpenAIConfig) handleStreamResponse(body io.Reader, responseChan chan<- models.StreamResponse) {
	var markdownBuffer strings.Builder // Buffer to accumulate content until newline
	reader := bufio.NewReader(body)

	flush := func() {
		if markdownBuffer.Len() > 0 {
			responseChan <- models.StreamResponse{Content: markdownBuffer.String()}
			markdownBuffer.Reset()
		}
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			responseChan <- models.StreamResponse{Err: fmt.Errorf("error reading stream: %w", err)}
			return
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, dataPrefix) {
			payload := strings.TrimPrefix(trimmed, dataPrefix)
			if payload == doneMarker {
				flush()
				responseChan <- models.StreamResponse{Done: true}
				return
			}

			var chunk openai_models.ChatCompletionChunk
			if jsonErr := json.Unmarshal([]byte(payload), &chunk); jsonErr != nil {
				responseChan <- models.StreamResponse{Err: fmt.Errorf("error unmarshalling chunk: %w", jsonErr)}
				return
			}

			openAIProvider.recordUsage(chunk.Usage)

			for _, choice := range chunk.Choices {
				content := choice.Delta.Content
				if content == "" {
					continue
				}
				markdownBuffer.WriteString(content)

				// Send chunk if it contains a newline, and then reset the buffer
				if strings.Contains(content, "\n") {
					flush()
				}
			}
		}

		if err == io.EOF {
			break
		}
	}

	flush()
	responseChan <- models.StreamResponse{Done: true}
}

func (openAIProvider *OpenAIConfig) recordUsage(usage *openai_models.Usage) {
	if usage == nil || openAIProvider.TokenManagement == nil {
		return
	}
	openAIProvider.TokenManagement.UsedTokens(usage.PromptTokens, usage.CompletionTokens)
}
