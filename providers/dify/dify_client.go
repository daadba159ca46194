package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meysamhadeli/kbchat/providers/contracts"
	"github.com/meysamhadeli/kbchat/providers/models"
)

const (
	defaultBaseURL = "https://api.dify.ai/v1"
	defaultTimeout = 30 * time.Second
)

// Client talks to the Dify dataset (knowledge base) API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Dify client. A zero timeout falls back to 30 seconds.
func NewClient(baseURL string, apiKey string, timeout time.Duration) contracts.IKnowledgeBase {
	return NewClientWithHTTP(baseURL, apiKey, &http.Client{Timeout: timeoutOrDefault(timeout)})
}

// NewClientWithHTTP creates a Dify client that sends requests through httpClient.
func NewClientWithHTTP(baseURL string, apiKey string, httpClient *http.Client) contracts.IKnowledgeBase {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}

func (c *Client) ListDatasets(ctx context.Context, keyword string, page int, limit int) (*models.DatasetList, error) {
	var result models.DatasetList
	if err := c.do(ctx, http.MethodGet, "/datasets"+pageQuery(keyword, page, limit), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	return &result, nil
}

func (c *Client) CreateDocumentByText(ctx context.Context, datasetID string, request models.CreateDocumentByTextRequest) (*models.DocumentResponse, error) {
	var result models.DocumentResponse
	path := fmt.Sprintf("/datasets/%s/document/create-by-text", url.PathEscape(datasetID))
	if err := c.do(ctx, http.MethodPost, path, request, &result); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", request.Name, err)
	}
	return &result, nil
}

func (c *Client) ListDocuments(ctx context.Context, datasetID string, keyword string, page int, limit int) (*models.DocumentList, error) {
	var result models.DocumentList
	path := fmt.Sprintf("/datasets/%s/documents%s", url.PathEscape(datasetID), pageQuery(keyword, page, limit))
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return &result, nil
}

func (c *Client) DeleteDocument(ctx context.Context, datasetID string, documentID string) error {
	path := fmt.Sprintf("/datasets/%s/documents/%s", url.PathEscape(datasetID), url.PathEscape(documentID))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

func (c *Client) GetIndexingStatus(ctx context.Context, datasetID string, batch string) (*models.IndexingStatusList, error) {
	var result models.IndexingStatusList
	path := fmt.Sprintf("/datasets/%s/documents/%s/indexing-status", url.PathEscape(datasetID), url.PathEscape(batch))
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get indexing status: %w", err)
	}
	return &result, nil
}

func (c *Client) Retrieve(ctx context.Context, datasetID string, request models.RetrievalRequest) (*models.RetrievalResponse, error) {
	var result models.RetrievalResponse
	path := fmt.Sprintf("/datasets/%s/retrieve", url.PathEscape(datasetID))
	if err := c.do(ctx, http.MethodPost, path, request, &result); err != nil {
		return nil, fmt.Errorf("failed to retrieve from knowledge base: %w", err)
	}
	return &result, nil
}

func pageQuery(keyword string, page int, limit int) string {
	params := url.Values{}
	if keyword != "" {
		params.Set("keyword", keyword)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	return "?" + params.Encode()
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshalling request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		var apiError models.DifyError
		if jsonErr := json.Unmarshal(data, &apiError); jsonErr == nil && apiError.Message != "" {
			return fmt.Errorf("dify API error (status %d): %s", resp.StatusCode, apiError.Message)
		}
		return fmt.Errorf("dify API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
