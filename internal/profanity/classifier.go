// Package profanity decides whether user text contains profanity.
//
// Classifiers never return errors: when a verdict cannot be obtained they
// fall back to a configured failure verdict, so callers can always proceed.
package profanity

import (
	"context"
)

// Classifier reports whether text contains profanity
type Classifier interface {
	Classify(ctx context.Context, text string) bool
}

// ClassifierFunc adapts a plain function to Classifier
type ClassifierFunc func(ctx context.Context, text string) bool

func (f ClassifierFunc) Classify(ctx context.Context, text string) bool {
	return f(ctx, text)
}

// verdictSource is implemented by classifiers that can tell a real verdict
// from a failure fallback. Only definitive verdicts are cached.
type verdictSource interface {
	verdict(ctx context.Context, text string) (profane bool, definitive bool)
}
