// Package artifact implements the artifacts namespace: save/load/list/
// delete of opaque byte blobs with optional description and metadata.
package artifact

import (
	"context"
	"time"

	"github.com/kagent-dev/codesession/internal/storage"
)

// Summary is the listing view of an artifact (no data payload).
type Summary struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Record is the full artifact view returned by Load.
type Record struct {
	Summary
	Data []byte `json:"data"`
}

// Store wraps the generic storage.Store for the artifacts kind.
type Store struct {
	backend storage.Store
}

func NewStore(backend storage.Store) *Store {
	return &Store{backend: backend}
}

func summaryFromEntity(e storage.Entity) Summary {
	s := Summary{Name: e.Name, CreatedAt: e.CreatedAt}
	if e.Meta != nil {
		if d, ok := e.Meta["description"].(string); ok {
			s.Description = d
		}
		if m, ok := e.Meta["metadata"].(map[string]any); ok {
			s.Metadata = m
		}
	}
	return s
}

// Save persists an artifact, overwriting any existing entity of the
// same name (artifacts have no duplicate-name gate, unlike skills).
func (s *Store) Save(ctx context.Context, name string, data []byte, description string, metadata map[string]any) error {
	meta := map[string]any{"description": description}
	if metadata != nil {
		meta["metadata"] = metadata
	}
	return s.backend.Put(ctx, storage.KindArtifacts, storage.Entity{
		Name: name,
		Data: data,
		Meta: meta,
	})
}

func (s *Store) Load(ctx context.Context, name string) (Record, error) {
	e, err := s.backend.Get(ctx, storage.KindArtifacts, name)
	if err != nil {
		return Record{}, err
	}
	return Record{Summary: summaryFromEntity(e), Data: e.Data}, nil
}

func (s *Store) List(ctx context.Context) ([]Summary, error) {
	res, err := s.backend.List(ctx, storage.KindArtifacts)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(res.Entities))
	for i, e := range res.Entities {
		out[i] = summaryFromEntity(e)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	return s.backend.Delete(ctx, storage.KindArtifacts, name)
}
