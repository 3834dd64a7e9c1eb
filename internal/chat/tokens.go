package chat

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Rough per-turn framing cost on the provider side.
const turnOverheadTokens = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func loadEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Leave encoding nil; EstimateTokens falls back to a
			// character heuristic.
			return
		}
		encoding = enc
	})
	return encoding
}

// EstimateTokens approximates how many provider tokens a turn list consumes.
func EstimateTokens(turns []Turn) int {
	enc := loadEncoding()
	total := 0
	for _, t := range turns {
		if enc != nil {
			total += len(enc.Encode(t.Text, nil, nil))
		} else {
			total += len(t.Text)/4 + 1
		}
		total += turnOverheadTokens
	}
	return total
}

// CapContext drops the oldest history turns until the estimate fits within
// maxTokens. The system turn and the final user turn are never dropped, so
// the result may still exceed the cap when those two alone do. maxTokens <= 0
// disables the cap.
func CapContext(turns []Turn, maxTokens int) []Turn {
	if maxTokens <= 0 || len(turns) <= 2 {
		return turns
	}
	if EstimateTokens(turns) <= maxTokens {
		return turns
	}

	history := turns[1 : len(turns)-1]
	for len(history) > 0 {
		history = history[1:]
		capped := make([]Turn, 0, len(history)+2)
		capped = append(capped, turns[0])
		capped = append(capped, history...)
		capped = append(capped, turns[len(turns)-1])
		if EstimateTokens(capped) <= maxTokens {
			return capped
		}
	}
	return []Turn{turns[0], turns[len(turns)-1]}
}
