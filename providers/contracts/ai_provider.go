package contracts

import (
	"context"

	"github.com/meysamhadeli/kbchat/providers/models"
)

type IChatAIProvider interface {
	ChatCompletionRequest(ctx context.Context, userInput string, prompt string) <-chan models.StreamResponse
}
