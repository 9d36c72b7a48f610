// Package signals defines the narrow contracts for the external text-signal
// services (sentiment, spellcheck) and an HTTP client for each. Both are
// best-effort enrichments: callers skip alignment scoring when they fail.
package signals

import (
	"context"

	"github.com/yungbote/feedquest-backend/internal/alignment"
)

// SentimentProvider scores the polarity of a piece of text.
type SentimentProvider interface {
	Analyze(ctx context.Context, text string) (alignment.Sentiment, error)
}

// SpellcheckProvider counts spelling mistakes in a piece of text.
type SpellcheckProvider interface {
	Check(ctx context.Context, text string) (int, error)
}
