package token_management

import (
	"unicode/utf8"
)

// CharsPerToken is the assumed number of characters covered by one token.
const CharsPerToken = 4

// EstimateTokens returns ceil(characters / CharsPerToken). Characters are counted as runes so
// multi-byte text is not over-counted.
func EstimateTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	return (chars + CharsPerToken - 1) / CharsPerToken
}

// CharsForTokens is the inverse of EstimateTokens: the number of characters a token budget covers.
func CharsForTokens(tokens int) int {
	return tokens * CharsPerToken
}
