package llm

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens locally for providers that omit usage in
// their responses.
type Estimator struct {
	encoding *tiktoken.Tiktoken
}

// NewEstimator builds a tokenizer for the given model, falling back to
// cl100k_base when the model is unknown to the encoding tables.
func NewEstimator(model string) (*Estimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("llm: get tokenizer: %w", err)
		}
	}
	return &Estimator{encoding: enc}, nil
}

// Count returns the token count of text.
func (e *Estimator) Count(text string) int {
	return len(e.encoding.Encode(text, nil, nil))
}

// CountMessages sums the token counts of every message's content.
func (e *Estimator) CountMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += e.Count(m.Content)
	}
	return total
}
