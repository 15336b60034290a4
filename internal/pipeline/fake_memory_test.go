package pipeline

import (
	"context"
	"encoding/json"

	"github.com/aristath/riskgovernor/internal/memory"
)

// fakeMemory serves fixed KV values and search hits.
type fakeMemory struct {
	kv      map[string]any
	hits    []memory.SearchHit
	queries []string
	err     error
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{kv: map[string]any{}}
}

func (f *fakeMemory) Get(_ context.Context, scope, key string, dest any) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	v, ok := f.kv[scope+"/"+key]
	if !ok {
		return false, nil
	}
	if dest != nil {
		raw, _ := json.Marshal(v)
		if err := json.Unmarshal(raw, dest); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (f *fakeMemory) Set(_ context.Context, scope, key string, value any) error {
	f.kv[scope+"/"+key] = value
	return nil
}

func (f *fakeMemory) AddVector(context.Context, string, string, any) (string, error) {
	return "vec_fake", nil
}

func (f *fakeMemory) Search(_ context.Context, _ string, query string, topK int) ([]memory.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, query)
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}
