package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/riskgovernor/internal/database"
)

// Store implements Port over the memory_kv and memory_vectors tables. It
// runs on whatever Querier it is given, so a Store built on a *sql.Tx
// reads and writes inside that transaction.
type Store struct {
	q   database.Querier
	now func() time.Time
	log zerolog.Logger
}

// NewStore creates a memory store on q.
func NewStore(q database.Querier, log zerolog.Logger) *Store {
	return &Store{
		q:   q,
		now: time.Now,
		log: log.With().Str("repo", "memory").Logger(),
	}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// NewID returns a prefixed random id such as vec_3f2a....
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Get decodes the value at (scope, key) into dest. dest may be nil to only
// test for presence.
func (s *Store) Get(ctx context.Context, scope, key string, dest any) (bool, error) {
	var raw string
	err := s.q.QueryRowContext(ctx,
		"SELECT v_json FROM memory_kv WHERE scope = ? AND k = ?", scope, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read memory %s/%s: %w", scope, key, err)
	}

	if dest != nil {
		if err := json.Unmarshal([]byte(raw), dest); err != nil {
			return true, fmt.Errorf("failed to decode memory %s/%s: %w", scope, key, err)
		}
	}
	return true, nil
}

// Set upserts value at (scope, key). Last writer wins.
func (s *Store) Set(ctx context.Context, scope, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode memory %s/%s: %w", scope, key, err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO memory_kv (scope, k, v_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, k) DO UPDATE SET
			v_json = excluded.v_json,
			updated_at = excluded.updated_at
	`, scope, key, string(raw), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write memory %s/%s: %w", scope, key, err)
	}

	s.log.Debug().Str("scope", scope).Str("key", key).Msg("Memory value set")
	return nil
}

// AddVector embeds text and stores it with metadata.
func (s *Store) AddVector(ctx context.Context, scope, text string, metadata any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode vector metadata: %w", err)
	}
	blob, err := msgpack.Marshal(Embed(text))
	if err != nil {
		return "", fmt.Errorf("failed to encode embedding: %w", err)
	}

	id := NewID("vec")
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO memory_vectors (vector_id, scope, text, embedding, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, scope, text, blob, string(meta), s.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert vector in %s: %w", scope, err)
	}

	s.log.Debug().Str("scope", scope).Str("vector_id", id).Msg("Vector added")
	return id, nil
}

// Search scores every vector in scope against query by cosine similarity and
// returns the topK, highest first. Equal scores are ordered by vector id.
func (s *Store) Search(ctx context.Context, scope, query string, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		return []SearchHit{}, nil
	}

	rows, err := s.q.QueryContext(ctx,
		"SELECT vector_id, text, embedding, metadata_json FROM memory_vectors WHERE scope = ?", scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors in %s: %w", scope, err)
	}
	defer rows.Close()

	q := Embed(query)
	hits := make([]SearchHit, 0)
	for rows.Next() {
		var (
			hit  SearchHit
			blob []byte
			meta string
		)
		if err := rows.Scan(&hit.VectorID, &hit.Text, &blob, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}

		var emb []float64
		if err := msgpack.Unmarshal(blob, &emb); err != nil {
			return nil, fmt.Errorf("failed to decode embedding %s: %w", hit.VectorID, err)
		}
		hit.Score = Cosine(q, emb)
		hit.Metadata = json.RawMessage(meta)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vectors: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].VectorID < hits[j].VectorID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
