package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meysamhadeli/kbchat/chat/contracts"
	"github.com/meysamhadeli/kbchat/chat/models"
)

// DefaultHistoryExchanges is the number of question/answer pairs kept for the prompt.
const DefaultHistoryExchanges = 10

type exchange struct {
	user      models.Message
	assistant models.Message
}

// ChatHistory keeps the messages of one session in memory.
type ChatHistory struct {
	mu           sync.Mutex
	messages     []models.Message
	exchanges    []exchange
	maxExchanges int
	now          func() time.Time
}

// NewChatHistory creates an empty history. maxExchanges below 1 uses DefaultHistoryExchanges.
func NewChatHistory(maxExchanges int) contracts.IChatHistory {
	if maxExchanges < 1 {
		maxExchanges = DefaultHistoryExchanges
	}
	return &ChatHistory{
		maxExchanges: maxExchanges,
		now:          time.Now,
	}
}

func (h *ChatHistory) newMessage(role models.Role, content string) models.Message {
	return models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: h.now(),
	}
}

// AddToHistory records a question and its answer.
func (h *ChatHistory) AddToHistory(userInput string, aiResponse string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := exchange{
		user:      h.newMessage(models.RoleUser, userInput),
		assistant: h.newMessage(models.RoleAssistant, aiResponse),
	}
	h.messages = append(h.messages, entry.user, entry.assistant)
	h.exchanges = append(h.exchanges, entry)

	if len(h.exchanges) > h.maxExchanges {
		h.exchanges = h.exchanges[len(h.exchanges)-h.maxExchanges:]
	}
}

// AddSystemMessage records a notice shown to the user. System messages never reach the prompt.
func (h *ChatHistory) AddSystemMessage(content string) models.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	message := h.newMessage(models.RoleSystem, content)
	h.messages = append(h.messages, message)
	return message
}

// GetHistory returns the most recent exchanges formatted for a prompt, oldest first.
func (h *ChatHistory) GetHistory() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	history := make([]string, 0, len(h.exchanges))
	for _, e := range h.exchanges {
		history = append(history, fmt.Sprintf("%s: %s\n%s: %s", e.user.Role, e.user.Content, e.assistant.Role, e.assistant.Content))
	}
	return history
}

// Messages returns a copy of every message in the session.
func (h *ChatHistory) Messages() []models.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]models.Message(nil), h.messages...)
}

func (h *ChatHistory) ClearHistory() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = nil
	h.exchanges = nil
}
