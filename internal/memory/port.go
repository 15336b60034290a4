// Package memory is the governor's key-value and vector memory.
package memory

import (
	"context"
	"encoding/json"
)

// SearchHit is one vector search result.
type SearchHit struct {
	VectorID string          `json:"vector_id"`
	Text     string          `json:"text"`
	Score    float64         `json:"score"`
	Metadata json.RawMessage `json:"metadata"`
}

// Port is the memory interface handed to decision stages.
type Port interface {
	// Get decodes the value at (scope, key) into dest and reports whether it existed.
	Get(ctx context.Context, scope, key string, dest any) (bool, error)
	// Set upserts a JSON-serializable value at (scope, key).
	Set(ctx context.Context, scope, key string, value any) error
	// AddVector embeds text and stores it in scope, returning the new vector id.
	AddVector(ctx context.Context, scope, text string, metadata any) (string, error)
	// Search returns the topK vectors in scope most similar to query.
	Search(ctx context.Context, scope, query string, topK int) ([]SearchHit, error)
}
