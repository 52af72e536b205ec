// Package llm defines the model-call boundary and its adapters. The
// core treats the model as an opaque, fallible text function; callers
// surface errors per item and keep processing their batch.
package llm

import "context"

// Client is the interface for proposal generation. Implemented by the
// Gemini adapter in production and by Fake in tests; selected by
// dependency injection at construction.
type Client interface {
	// GenerateProposal sends the instructions, the raw note body, the
	// vault context, and the link skeleton to the model and returns the
	// raw transcript (explanation + %%FILE%% blocks).
	GenerateProposal(ctx context.Context, instructions, body, vaultContext, skeleton string) (string, error)
}
