package prompt

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// imageTokenEstimate is a flat per-image allowance. Actual image token cost
// depends on resolution, which we do not inspect.
const imageTokenEstimate = 800

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// estimateRequestTokens estimates the token footprint of a request:
// instructions plus every text part, plus a flat allowance per image.
// The estimate is informational; nothing is rejected on it.
func estimateRequestTokens(req *Request) int {
	total := countTokens(req.Instructions)
	for _, part := range req.Parts {
		if part.Image != nil {
			total += imageTokenEstimate
			continue
		}
		total += countTokens(part.Text)
	}
	return total
}

func countTokens(s string) int {
	codecOnce.Do(func() {
		var err error
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warn().Err(err).Msg("Tokenizer unavailable, falling back to byte estimate")
		}
	})

	if codec == nil {
		// Rough bytes-per-token fallback
		return len(s) / 4
	}
	count, err := codec.Count(s)
	if err != nil {
		return len(s) / 4
	}
	return count
}
