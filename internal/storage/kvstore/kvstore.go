// Package kvstore implements the KV storage backend over a NATS JetStream
// KeyValue bucket: each skill/artifact is two keys, "<prefix>:<kind>:<name>"
// for the raw data and "<prefix>:<kind>:<name>:meta" for its JSON meta
// sidecar, while deps are tracked as a single list-valued key
// "<prefix>:deps" so deps.list() returns a stable order without a prefix
// scan.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/storage"
)

const bucketName = "codesession"
const metaSuffix = ":meta"

// Store is the NATS JetStream KV backed storage implementation.
type Store struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
	url  string
	pfx  string
}

// New connects to NATS at url and opens (creating if needed) the KV bucket
// used for all stores, keying every entry by prefix.
func New(ctx context.Context, url, prefix string) (*Store, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "connecting to NATS", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, errs.Wrap(errs.KindStorageUnavailable, "creating JetStream context", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucketName,
	})
	if err != nil {
		nc.Close()
		return nil, errs.Wrap(errs.KindStorageUnavailable, "creating KV bucket", err)
	}

	if prefix == "" {
		prefix = "codesession"
	}
	return &Store{conn: nc, kv: kv, url: url, pfx: prefix}, nil
}

func (s *Store) Close() { s.conn.Close() }

func (s *Store) key(kind storage.Kind, name string) string {
	return fmt.Sprintf("%s:%s:%s", s.pfx, kind, name)
}

func (s *Store) metaKey(kind storage.Kind, name string) string {
	return s.key(kind, name) + metaSuffix
}

func (s *Store) listKeyPrefix(kind storage.Kind) string {
	return fmt.Sprintf("%s:%s:", s.pfx, kind)
}

func (s *Store) depsKey() string {
	return fmt.Sprintf("%s:deps", s.pfx)
}

func (s *Store) Ping(ctx context.Context) error {
	if !s.conn.IsConnected() {
		return errs.New(errs.KindStorageUnavailable, "not connected to NATS")
	}
	return nil
}

func (s *Store) ToBootstrapConfig() storage.Access {
	return storage.Access{KV: &storage.KVAccess{ConnectionURL: s.url, Prefix: s.pfx}}
}

func (s *Store) Get(ctx context.Context, kind storage.Kind, name string) (storage.Entity, error) {
	if kind == storage.KindDeps {
		return s.getDep(ctx, name)
	}
	entry, err := s.kv.Get(ctx, s.key(kind, name))
	if err != nil {
		return storage.Entity{}, errs.Wrap(errs.KindNotFound, "not found: "+name, err)
	}
	meta, createdAt, err := s.readMeta(ctx, kind, name)
	if err != nil {
		return storage.Entity{}, err
	}
	return storage.Entity{Name: name, Data: entry.Value(), Meta: meta, CreatedAt: createdAt}, nil
}

func (s *Store) Put(ctx context.Context, kind storage.Kind, e storage.Entity) error {
	if e.Name == "" {
		return errs.New(errs.KindConflict, "entity name must not be empty")
	}
	if kind == storage.KindDeps {
		return s.putDep(ctx, e)
	}
	if _, err := s.kv.Put(ctx, s.key(kind, e.Name), e.Data); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "writing entity", err)
	}
	return s.writeMeta(ctx, kind, e.Name, e.Meta, e.CreatedAt)
}

func (s *Store) Delete(ctx context.Context, kind storage.Kind, name string) (bool, error) {
	if kind == storage.KindDeps {
		return s.deleteDep(ctx, name)
	}
	if _, err := s.kv.Get(ctx, s.key(kind, name)); err != nil {
		return false, nil
	}
	if err := s.kv.Delete(ctx, s.key(kind, name)); err != nil {
		return false, errs.Wrap(errs.KindStorageUnavailable, "deleting entity", err)
	}
	_ = s.kv.Delete(ctx, s.metaKey(kind, name))
	return true, nil
}

func (s *Store) Exists(ctx context.Context, kind storage.Kind, name string) (bool, error) {
	if kind == storage.KindDeps {
		lines, err := s.readDepsLines(ctx)
		if err != nil {
			return false, err
		}
		for _, l := range lines {
			if depName(l) == name {
				return true, nil
			}
		}
		return false, nil
	}
	_, err := s.kv.Get(ctx, s.key(kind, name))
	return err == nil, nil
}

// List performs a prefix scan over the bucket's keys. NATS KV list
// operations are eventually consistent: an entity just created may not
// appear until the next scan (spec.md §5).
func (s *Store) List(ctx context.Context, kind storage.Kind) (storage.ListResult, error) {
	if kind == storage.KindDeps {
		return s.listDeps(ctx)
	}
	keysLister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return storage.ListResult{}, errs.Wrap(errs.KindStorageUnavailable, "listing keys", err)
	}
	defer keysLister.Stop()
	prefix := s.listKeyPrefix(kind)
	var names []string
	for k := range keysLister.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if strings.HasSuffix(rest, metaSuffix) {
			continue
		}
		names = append(names, rest)
	}
	sort.Strings(names)

	var res storage.ListResult
	for _, name := range names {
		e, err := s.Get(ctx, kind, name)
		if err != nil {
			res.Errors = append(res.Errors, storage.ErrorRecord{Name: name, Error: err.Error()})
			continue
		}
		res.Entities = append(res.Entities, e)
	}
	return res, nil
}

// --- meta sidecar, stored as its own "<key>:meta" entry ---

type metaDoc struct {
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (s *Store) readMeta(ctx context.Context, kind storage.Kind, name string) (map[string]any, time.Time, error) {
	entry, err := s.kv.Get(ctx, s.metaKey(kind, name))
	if err != nil {
		return nil, time.Time{}, nil
	}
	var doc metaDoc
	if err := json.Unmarshal(entry.Value(), &doc); err != nil {
		return nil, time.Time{}, errs.Wrap(errs.KindCorrupt, "decoding meta for "+name, err)
	}
	return doc.Meta, doc.CreatedAt, nil
}

func (s *Store) writeMeta(ctx context.Context, kind storage.Kind, name string, meta map[string]any, createdAt time.Time) error {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	payload, err := json.Marshal(metaDoc{Meta: meta, CreatedAt: createdAt})
	if err != nil {
		return fmt.Errorf("marshalling meta: %w", err)
	}
	if _, err := s.kv.Put(ctx, s.metaKey(kind, name), payload); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "writing meta", err)
	}
	return nil
}

// --- deps (single list-valued key) ---

func depName(spec string) string {
	for _, sep := range []string{">=", "<=", "==", "!=", ">", "<", "="} {
		if idx := strings.Index(spec, sep); idx >= 0 {
			return spec[:idx]
		}
	}
	return spec
}

func (s *Store) readDepsLines(ctx context.Context) ([]string, error) {
	entry, err := s.kv.Get(ctx, s.depsKey())
	if err != nil {
		return nil, nil
	}
	var lines []string
	if err := json.Unmarshal(entry.Value(), &lines); err != nil {
		return nil, errs.Wrap(errs.KindCorrupt, "decoding deps list", err)
	}
	return lines, nil
}

func (s *Store) writeDepsLines(ctx context.Context, lines []string) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshalling deps list: %w", err)
	}
	if _, err := s.kv.Put(ctx, s.depsKey(), payload); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "writing deps list", err)
	}
	return nil
}

func (s *Store) getDep(ctx context.Context, name string) (storage.Entity, error) {
	lines, err := s.readDepsLines(ctx)
	if err != nil {
		return storage.Entity{}, err
	}
	for _, l := range lines {
		if depName(l) == name {
			return storage.Entity{Name: name, Data: []byte(l)}, nil
		}
	}
	return storage.Entity{}, errs.New(errs.KindNotFound, "dep not found: "+name)
}

func (s *Store) putDep(ctx context.Context, e storage.Entity) error {
	lines, err := s.readDepsLines(ctx)
	if err != nil {
		return err
	}
	spec := string(e.Data)
	name := depName(spec)
	replaced := false
	for i, l := range lines {
		if depName(l) == name {
			lines[i] = spec
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, spec)
	}
	return s.writeDepsLines(ctx, lines)
}

func (s *Store) deleteDep(ctx context.Context, name string) (bool, error) {
	lines, err := s.readDepsLines(ctx)
	if err != nil {
		return false, err
	}
	out := lines[:0]
	removed := false
	for _, l := range lines {
		if depName(l) == name {
			removed = true
			continue
		}
		out = append(out, l)
	}
	if !removed {
		return false, nil
	}
	return true, s.writeDepsLines(ctx, out)
}

func (s *Store) listDeps(ctx context.Context) (storage.ListResult, error) {
	lines, err := s.readDepsLines(ctx)
	if err != nil {
		return storage.ListResult{}, err
	}
	var res storage.ListResult
	for _, l := range lines {
		res.Entities = append(res.Entities, storage.Entity{Name: depName(l), Data: []byte(l)})
	}
	return res, nil
}

var _ storage.Store = (*Store)(nil)
