package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/meysamhadeli/kbchat/chat"
	"github.com/meysamhadeli/kbchat/config"
	"github.com/meysamhadeli/kbchat/context_manager"
	"github.com/meysamhadeli/kbchat/providers/models"
	"github.com/meysamhadeli/kbchat/utils"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKnowledgeBase struct {
	datasets []models.Dataset
	err      error
	page     int
	limit    int
}

func (f *fakeKnowledgeBase) ListDatasets(ctx context.Context, keyword string, page int, limit int) (*models.DatasetList, error) {
	f.page = page
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return &models.DatasetList{Data: f.datasets, Total: len(f.datasets), Page: page, Limit: limit}, nil
}

func (f *fakeKnowledgeBase) CreateDocumentByText(ctx context.Context, datasetID string, request models.CreateDocumentByTextRequest) (*models.DocumentResponse, error) {
	return &models.DocumentResponse{}, nil
}

func (f *fakeKnowledgeBase) ListDocuments(ctx context.Context, datasetID string, keyword string, page int, limit int) (*models.DocumentList, error) {
	return &models.DocumentList{}, nil
}

func (f *fakeKnowledgeBase) DeleteDocument(ctx context.Context, datasetID string, documentID string) error {
	return nil
}

func (f *fakeKnowledgeBase) GetIndexingStatus(ctx context.Context, datasetID string, batch string) (*models.IndexingStatusList, error) {
	return &models.IndexingStatusList{}, nil
}

func (f *fakeKnowledgeBase) Retrieve(ctx context.Context, datasetID string, request models.RetrievalRequest) (*models.RetrievalResponse, error) {
	return &models.RetrievalResponse{}, nil
}

// endlessProvider fails first and then streams content until its context is cancelled.
type endlessProvider struct {
	finished chan struct{}
}

func (p *endlessProvider) ChatCompletionRequest(ctx context.Context, userInput string, prompt string) <-chan models.StreamResponse {
	responseChan := make(chan models.StreamResponse)
	go func() {
		defer close(responseChan)
		defer close(p.finished)

		responseChan <- models.StreamResponse{Err: errors.New("stream broken")}
		for {
			select {
			case responseChan <- models.StreamResponse{Content: "more\n"}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return responseChan
}

func TestKnowledgeBaseTable(t *testing.T) {
	data := knowledgeBaseTable([]models.Dataset{
		{ID: "kb-1", Name: "Docs", DocumentCount: 3, WordCount: 1200},
		{ID: "kb-2", Name: "Code", DocumentCount: 0, WordCount: 0},
	}, "kb-2")

	require.Len(t, data, 3)
	assert.Equal(t, []string{"", "ID", "Name", "Documents", "Words"}, data[0])
	assert.Equal(t, []string{"", "kb-1", "Docs", "3", "1200"}, data[1])
	assert.Equal(t, []string{"*", "kb-2", "Code", "0", "0"}, data[2])
}

func TestRenderKnowledgeBases(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	kb := &fakeKnowledgeBase{datasets: []models.Dataset{{ID: "kb-1", Name: "Product docs", DocumentCount: 7, WordCount: 42}}}
	var out bytes.Buffer

	require.NoError(t, renderKnowledgeBases(context.Background(), kb, "kb-1", &out))

	assert.Equal(t, 1, kb.page)
	assert.Equal(t, knowledgeBasePageSize, kb.limit)
	assert.Contains(t, out.String(), "kb-1")
	assert.Contains(t, out.String(), "Product docs")
	assert.Contains(t, out.String(), "*")
}

func TestRenderKnowledgeBases_Empty(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, renderKnowledgeBases(context.Background(), &fakeKnowledgeBase{}, "", &out))

	assert.Contains(t, out.String(), "No knowledge bases found.")
}

func TestRenderKnowledgeBases_Error(t *testing.T) {
	kb := &fakeKnowledgeBase{err: errors.New("unauthorized")}

	err := renderKnowledgeBases(context.Background(), kb, "", io.Discard)

	assert.EqualError(t, err, "unauthorized")
}

func TestAsk_StopsProviderOnStreamError(t *testing.T) {
	planner, err := context_manager.NewContextManager(*config.DefaultConfig.Context)
	require.NoError(t, err)

	provider := &endlessProvider{finished: make(chan struct{})}
	loop := &chatLoop{
		session: chat.NewSession(
			provider,
			&fakeKnowledgeBase{},
			chat.NewPromptBuilder(planner),
			chat.NewChatHistory(chat.DefaultHistoryExchanges),
			"kb-1",
			zap.NewNop(),
		),
		renderer: utils.NewMarkdownRenderer(io.Discard, "dracula"),
		reader:   bufio.NewReader(strings.NewReader("")),
		spinner:  pterm.DefaultSpinner.WithRemoveWhenDone(true),
	}

	err = loop.ask(context.Background(), "what is kbchat?")

	assert.EqualError(t, err, "stream broken")
	select {
	case <-provider.finished:
	default:
		t.Fatal("provider stream still running after ask returned")
	}
}
