package domain

import "context"

// Agent is a conversational collaborator that answers a natural-language
// prompt. Implementations may be slow or fail; callers must treat Run as an
// opaque synchronous call and degrade on error.
type Agent interface {
	Name() string
	Run(ctx context.Context, prompt string) (string, error)
}
