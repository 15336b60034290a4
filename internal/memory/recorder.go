package memory

import (
	"context"
	"sync"

	"github.com/aristath/riskgovernor/internal/domain"
)

// Recorder wraps a Port and keeps an ordered log of every read and write,
// which the engine copies into the audit report.
type Recorder struct {
	inner  Port
	mu     sync.Mutex
	reads  []domain.MemoryRead
	writes []domain.MemoryWrite
}

// NewRecorder wraps inner.
func NewRecorder(inner Port) *Recorder {
	return &Recorder{
		inner:  inner,
		reads:  []domain.MemoryRead{},
		writes: []domain.MemoryWrite{},
	}
}

func (r *Recorder) Get(ctx context.Context, scope, key string, dest any) (bool, error) {
	hit, err := r.inner.Get(ctx, scope, key, dest)
	if err != nil {
		return hit, err
	}

	r.mu.Lock()
	r.reads = append(r.reads, domain.MemoryRead{Kind: domain.CitationKV, Scope: scope, Key: key, Hit: &hit})
	r.mu.Unlock()
	return hit, nil
}

func (r *Recorder) Set(ctx context.Context, scope, key string, value any) error {
	if err := r.inner.Set(ctx, scope, key, value); err != nil {
		return err
	}

	r.mu.Lock()
	r.writes = append(r.writes, domain.MemoryWrite{Kind: domain.CitationKV, Scope: scope, Key: key})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) AddVector(ctx context.Context, scope, text string, metadata any) (string, error) {
	id, err := r.inner.AddVector(ctx, scope, text, metadata)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.writes = append(r.writes, domain.MemoryWrite{Kind: domain.CitationVector, Scope: scope, VectorID: id})
	r.mu.Unlock()
	return id, nil
}

func (r *Recorder) Search(ctx context.Context, scope, query string, topK int) ([]SearchHit, error) {
	hits, err := r.inner.Search(ctx, scope, query, topK)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.VectorID
	}

	r.mu.Lock()
	r.reads = append(r.reads, domain.MemoryRead{Kind: domain.CitationVector, Scope: scope, Query: query, TopK: topK, Hits: ids})
	r.mu.Unlock()
	return hits, nil
}

// Reads returns a copy of the recorded reads.
func (r *Recorder) Reads() []domain.MemoryRead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.MemoryRead{}, r.reads...)
}

// Writes returns a copy of the recorded writes.
func (r *Recorder) Writes() []domain.MemoryWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.MemoryWrite{}, r.writes...)
}
