// Package provider defines the interface and adapters for the black-box
// text-generation collaborator. Each adapter (openai.go, anthropic.go)
// converts one vendor SDK into the single Generate call the extractor needs.
// Callers must not assume the returned text is schema-valid.
package provider

import "context"

// Generator is the text-generation collaborator: prompt in, text out.
// Implementations honor ctx cancellation and deadlines; a deadline expiry
// surfaces as an ordinary error for the caller to degrade on.
type Generator interface {
	// Generate produces a completion for prompt under the given system
	// instructions.
	Generate(ctx context.Context, system, prompt string) (string, error)

	// Name returns the provider identifier, e.g. "openai", "anthropic".
	Name() string
}
