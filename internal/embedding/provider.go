// Package embedding turns enriched text into vectors through pluggable
// providers, with caching, chunking, throttling and retries.
package embedding

import "context"

// Role tells asymmetric models whether a text is a search query or a
// catalog document.
type Role string

const (
	RoleQuery    Role = "query"
	RoleDocument Role = "document"
)

// Provider is one embedding backend.
type Provider interface {
	// Name identifies the provider and model; it is stored next to
	// precomputed catalog vectors.
	Name() string
	// MaxBatch is the largest number of texts accepted per Embed call.
	MaxBatch() int
	// Dimensions is the vector length, or 0 when only known after a call.
	Dimensions() int
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string, role Role) ([][]float64, error)
}
