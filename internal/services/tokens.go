package services

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates the token size of collaborator outputs. It prefers a
// real tiktoken encoding and falls back to a bytes/4 heuristic when the
// encoding files are unavailable (offline environments).
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter creates a TokenCounter backed by the cl100k_base encoding
// when it can be loaded.
func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: enc}
}

// Count returns the estimated token count of text.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return len(text) / 4
	}
	return len(c.encoding.Encode(text, nil, nil))
}
