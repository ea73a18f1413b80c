// Package storage defines the persistence contract shared by the file and
// KV-store backends: skills, artifacts, and deps are each a "kind" of
// entity persisted behind a uniform Get/Put/Delete/List/Exists interface,
// and every backend can describe itself as a serializable StorageAccess
// descriptor for cross-process bootstrap.
package storage

import (
	"context"
	"time"
)

// Kind names a logical store within a backend.
type Kind string

const (
	KindSkills    Kind = "skills"
	KindArtifacts Kind = "artifacts"
	KindDeps      Kind = "deps"
)

// Entity is a persisted record: source bytes plus a small metadata sidecar.
// Skills store their source in Data and derived fields in Meta; artifacts
// store raw bytes in Data and description/metadata in Meta; deps store a
// spec string in Data.
type Entity struct {
	Name      string
	Data      []byte
	Meta      map[string]any
	CreatedAt time.Time
}

// ErrorRecord replaces an Entity in a listing when the backend could read
// the raw bytes but not parse/validate the payload (Corrupt).
type ErrorRecord struct {
	Name  string
	Error string
}

// ListResult separates healthy entities from corrupt ones, so a single bad
// entity never fails the whole listing (spec.md §4.A, §7).
type ListResult struct {
	Entities []Entity
	Errors   []ErrorRecord
}

// Store is the per-kind persistence contract implemented by each backend.
type Store interface {
	Get(ctx context.Context, kind Kind, name string) (Entity, error)
	Put(ctx context.Context, kind Kind, e Entity) error
	Delete(ctx context.Context, kind Kind, name string) (bool, error)
	List(ctx context.Context, kind Kind) (ListResult, error)
	Exists(ctx context.Context, kind Kind, name string) (bool, error)
	Ping(ctx context.Context) error

	// ToBootstrapConfig returns a serializable descriptor sufficient for a
	// fresh process to reopen the same stores (spec.md §3, §4.A, §4.H).
	ToBootstrapConfig() Access
}

// Access is the StorageAccess sum type. Exactly one of File/KV is non-nil.
type Access struct {
	File *FileAccess `json:"file,omitempty"`
	KV   *KVAccess   `json:"kv,omitempty"`
}

// FileAccess describes a file storage backend.
type FileAccess struct {
	BasePath string `json:"base_path"`
}

// KVAccess describes a KV storage backend.
type KVAccess struct {
	ConnectionURL string `json:"connection_url"`
	Prefix        string `json:"prefix"`
}
