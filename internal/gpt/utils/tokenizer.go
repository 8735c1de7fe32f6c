package utils

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

const encoding = "cl100k_base"

var (
	tokenizer *tiktoken.Tiktoken
	initErr   error
	once      sync.Once
)

func initTokenizer() error {
	once.Do(func() {
		tokenizer, initErr = tiktoken.GetEncoding(encoding)
		if initErr != nil {
			log.Error().Err(initErr).Msg("failed to init tokenizer")
		}
	})
	return initErr
}

type Tokenizer struct {
	tokenizer *tiktoken.Tiktoken
}

func NewTokenizer() (Tokenizer, error) {
	if err := initTokenizer(); err != nil {
		return Tokenizer{}, err
	}

	return Tokenizer{tokenizer: tokenizer}, nil
}

func (t Tokenizer) CountTokens(s string) int {
	return len(t.tokenizer.Encode(s, nil, nil))
}

// Truncate cuts s down to at most max tokens.
func (t Tokenizer) Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	tokens := t.tokenizer.Encode(s, nil, nil)
	if len(tokens) <= max {
		return s
	}
	return t.tokenizer.Decode(tokens[:max])
}
