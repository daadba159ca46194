package models

// StreamResponse is one piece of a streamed chat completion. Exactly one of Content, Err or Done
// is meaningful per message.
type StreamResponse struct {
	Content string
	Err     error
	Done    bool
}

// AIError is the error envelope returned by OpenAI compatible APIs.
type AIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Message is a single chat message sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
