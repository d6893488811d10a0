// Package moderation decides whether user-submitted text is appropriate to
// display, by asking an external generative text classifier.
//
// The failure policy is deliberate and asymmetric: a safety block from the
// classifier counts as strong evidence the input is problematic and flags it,
// while a missing credential, transport failure, timeout, or unparseable
// response fails open and leaves the text unflagged.
package moderation

import "context"

// Classifier classifies a single piece of text.
type Classifier interface {
	// Classify reports whether text is inappropriate. It never fails:
	// every error condition is resolved internally to a verdict.
	Classify(ctx context.Context, text string) bool
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, text string) bool

func (f ClassifierFunc) Classify(ctx context.Context, text string) bool {
	return f(ctx, text)
}
