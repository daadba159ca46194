package contracts

import "github.com/meysamhadeli/kbchat/chat/models"

type IChatHistory interface {
	AddToHistory(userInput string, aiResponse string)
	AddSystemMessage(content string) models.Message
	GetHistory() []string
	Messages() []models.Message
	ClearHistory()
}
