package summarizer

import (
	"context"
)

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the normalized article text to summarise.
	Text string
	// MinLen and MaxLen bound the summary length in tokens. They are
	// assumed to be already validated by the length policy.
	MinLen int
	MaxLen int
}

// Summarizer produces a single length-bounded summary for a given
// input text. Implementations are treated as opaque, potentially
// seconds-scale synchronous calls; callers measure latency around
// them and map any error to a model failure.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
