package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	chat_contracts "github.com/meysamhadeli/kbchat/chat/contracts"
	scanner_models "github.com/meysamhadeli/kbchat/file_scanner/models"
	"github.com/meysamhadeli/kbchat/providers/contracts"
	"github.com/meysamhadeli/kbchat/providers/models"
	"go.uber.org/zap"
)

const (
	SearchMethod = "semantic_search"
	TopK         = 5
)

var (
	ErrNoKnowledgeBase = errors.New("please select a knowledge base first")
	ErrEmptyQuestion   = errors.New("question is empty")
)

// Session answers questions from one knowledge base, remembering the conversation and any
// attached local files.
type Session struct {
	provider      contracts.IChatAIProvider
	knowledgeBase contracts.IKnowledgeBase
	builder       *PromptBuilder
	history       chat_contracts.IChatHistory
	logger        *zap.Logger

	mu              sync.Mutex
	knowledgeBaseID string
	attached        []scanner_models.FileRecord
}

func NewSession(provider contracts.IChatAIProvider, knowledgeBase contracts.IKnowledgeBase, builder *PromptBuilder, history chat_contracts.IChatHistory, knowledgeBaseID string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		provider:        provider,
		knowledgeBase:   knowledgeBase,
		builder:         builder,
		history:         history,
		logger:          logger,
		knowledgeBaseID: knowledgeBaseID,
	}
}

func (s *Session) KnowledgeBaseID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.knowledgeBaseID
}

func (s *Session) SetKnowledgeBase(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledgeBaseID = strings.TrimSpace(id)
}

func (s *Session) History() chat_contracts.IChatHistory {
	return s.history
}

// Attach adds files to the local context of the following questions. A file attached twice
// replaces its earlier copy. It returns the number of attached files.
func (s *Session) Attach(files ...scanner_models.FileRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, file := range files {
		replaced := false
		for i := range s.attached {
			if s.attached[i].Path == file.Path {
				s.attached[i] = file
				replaced = true
				break
			}
		}
		if !replaced {
			s.attached = append(s.attached, file)
		}
	}
	return len(s.attached)
}

func (s *Session) Attached() []scanner_models.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scanner_models.FileRecord(nil), s.attached...)
}

func (s *Session) ClearAttachments() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = nil
}

// Retrieve runs a semantic search for query in the selected knowledge base.
func (s *Session) Retrieve(ctx context.Context, query string) ([]models.RetrievalRecord, error) {
	id := s.KnowledgeBaseID()
	if id == "" {
		return nil, ErrNoKnowledgeBase
	}

	response, err := s.knowledgeBase.Retrieve(ctx, id, models.RetrievalRequest{
		Query: query,
		RetrievalModel: &models.RetrievalModel{
			SearchMethod:          SearchMethod,
			RerankingEnable:       false,
			TopK:                  TopK,
			ScoreThresholdEnabled: false,
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("retrieved segments", zap.String("knowledge_base", id), zap.Int("records", len(response.Records)))
	return response.Records, nil
}

// Ask retrieves context for input and streams the provider's answer. The exchange is added to
// the history once the provider reports Done.
func (s *Session) Ask(ctx context.Context, input string) (<-chan models.StreamResponse, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyQuestion
	}

	records, err := s.Retrieve(ctx, input)
	if err != nil {
		return nil, err
	}

	prompt, userPrompt, err := s.builder.GeneratePrompt(PromptInput{
		UserInput: input,
		Segments:  records,
		Attached:  s.Attached(),
		History:   s.history.GetHistory(),
	})
	if err != nil {
		return nil, err
	}

	upstream := s.provider.ChatCompletionRequest(ctx, userPrompt, prompt)
	responseChan := make(chan models.StreamResponse)

	go func() {
		defer close(responseChan)

		var answer strings.Builder
		for response := range upstream {
			if response.Err == nil && !response.Done {
				answer.WriteString(response.Content)
			}
			if response.Done {
				s.history.AddToHistory(input, answer.String())
			}
			if response.Err != nil {
				s.logger.Warn("chat completion failed", zap.Error(response.Err))
			}

			select {
			case responseChan <- response:
			case <-ctx.Done():
				// drain so the provider goroutine can exit
				for range upstream {
				}
				return
			}
		}
	}()

	return responseChan, nil
}

// Collect reads a response stream to the end and returns the full answer.
func Collect(responses <-chan models.StreamResponse) (string, error) {
	var answer strings.Builder
	for response := range responses {
		if response.Err != nil {
			return answer.String(), fmt.Errorf("chat completion failed: %w", response.Err)
		}
		if !response.Done {
			answer.WriteString(response.Content)
		}
	}
	return answer.String(), nil
}
