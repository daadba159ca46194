package dify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meysamhadeli/kbchat/providers/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/v1/", "dataset-key", time.Second).(*Client)
}

func TestListDatasets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/datasets", r.URL.Path)
		assert.Equal(t, "Bearer dataset-key", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "docs", r.URL.Query().Get("keyword"))

		_, _ = w.Write([]byte(`{"data":[{"id":"kb-1","name":"Docs","document_count":3}],"has_more":false,"limit":20,"total":1,"page":1}`))
	})

	list, err := client.ListDatasets(context.Background(), "docs", 0, 0)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "kb-1", list.Data[0].ID)
	assert.Equal(t, 3, list.Data[0].DocumentCount)
}

func TestCreateDocumentByText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/datasets/kb-1/document/create-by-text", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var request models.CreateDocumentByTextRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "main.go", request.Name)
		assert.Equal(t, "package main", request.Text)
		assert.Equal(t, "high_quality", request.IndexingTechnique)
		if assert.NotNil(t, request.ProcessRule) {
			assert.Equal(t, "automatic", request.ProcessRule.Mode)
		}

		_, _ = w.Write([]byte(`{"document":{"id":"doc-1","name":"main.go","indexing_status":"waiting"},"batch":"batch-1"}`))
	})

	response, err := client.CreateDocumentByText(context.Background(), "kb-1", models.CreateDocumentByTextRequest{
		Name:              "main.go",
		Text:              "package main",
		IndexingTechnique: "high_quality",
		ProcessRule:       &models.ProcessRule{Mode: "automatic"},
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", response.Document.ID)
	assert.Equal(t, "batch-1", response.Batch)
}

func TestRetrieve(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/datasets/kb-1/retrieve", r.URL.Path)

		var request models.RetrievalRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "how to deploy", request.Query)
		if assert.NotNil(t, request.RetrievalModel) {
			assert.Equal(t, "semantic_search", request.RetrievalModel.SearchMethod)
			assert.Equal(t, 5, request.RetrievalModel.TopK)
		}

		_, _ = w.Write([]byte(`{"query":{"content":"how to deploy"},"records":[{"segment":{"id":"s1","content":"run make deploy","document":{"id":"d1","name":"README.md"}},"score":0.82}]}`))
	})

	response, err := client.Retrieve(context.Background(), "kb-1", models.RetrievalRequest{
		Query:          "how to deploy",
		RetrievalModel: &models.RetrievalModel{SearchMethod: "semantic_search", TopK: 5},
	})
	require.NoError(t, err)
	require.Len(t, response.Records, 1)
	assert.Equal(t, "run make deploy", response.Records[0].Segment.Content)
	assert.Equal(t, "README.md", response.Records[0].Segment.Document.Name)
	assert.InDelta(t, 0.82, response.Records[0].Score, 1e-9)
}

func TestDocumentsAndIndexingStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/datasets/kb-1/documents":
			_, _ = w.Write([]byte(`{"data":[{"id":"doc-1","name":"a.md"}],"total":1,"page":1,"limit":20}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/datasets/kb-1/documents/doc-1":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/datasets/kb-1/documents/batch-1/indexing-status":
			_, _ = w.Write([]byte(`{"data":[{"id":"doc-1","indexing_status":"completed","completed_segments":4,"total_segments":4}]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	documents, err := client.ListDocuments(ctx, "kb-1", "", 1, 20)
	require.NoError(t, err)
	require.Len(t, documents.Data, 1)
	assert.Equal(t, "a.md", documents.Data[0].Name)

	require.NoError(t, client.DeleteDocument(ctx, "kb-1", "doc-1"))

	status, err := client.GetIndexingStatus(ctx, "kb-1", "batch-1")
	require.NoError(t, err)
	require.Len(t, status.Data, 1)
	assert.Equal(t, "completed", status.Data[0].IndexingStatus)
	assert.Equal(t, 4, status.Data[0].TotalSegments)
}

func TestAPIErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/datasets" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Access token is invalid","status":401}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down\n"))
	})

	_, err := client.ListDatasets(context.Background(), "", 1, 20)
	assert.EqualError(t, err, "failed to list knowledge bases: dify API error (status 401): Access token is invalid")

	_, err = client.Retrieve(context.Background(), "kb-1", models.RetrievalRequest{Query: "q"})
	assert.EqualError(t, err, "failed to retrieve from knowledge base: dify API error (status 502): upstream down")
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("", "key", 0).(*Client)
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
}
