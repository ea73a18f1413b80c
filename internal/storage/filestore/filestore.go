// Package filestore implements the file storage backend over an afero
// filesystem: skills are "<name>.source" files with a sibling "<name>.meta"
// JSON sidecar, artifacts are raw "<name>" files with a sibling
// "<name>.meta", and deps are lines in a single requirements.txt. Using
// afero rather than the os package directly lets tests swap in an
// in-memory filesystem without touching disk.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/storage"
)

const depsFile = "requirements.txt"

// Store is the afero-backed file storage implementation.
type Store struct {
	fs       afero.Fs
	basePath string
}

// New creates a file store rooted at basePath on the given filesystem. Pass
// afero.NewOsFs() for real disk I/O or afero.NewMemMapFs() in tests.
func New(fs afero.Fs, basePath string) (*Store, error) {
	s := &Store{fs: fs, basePath: basePath}
	for _, k := range []storage.Kind{storage.KindSkills, storage.KindArtifacts, storage.KindDeps} {
		if err := s.fs.MkdirAll(s.dir(k), 0o755); err != nil {
			return nil, errs.Wrap(errs.KindStorageUnavailable, "creating storage directory", err)
		}
	}
	return s, nil
}

func (s *Store) dir(k storage.Kind) string {
	return filepath.Join(s.basePath, string(k))
}

func (s *Store) sourcePath(name string) string { return filepath.Join(s.dir(storage.KindSkills), name+".source") }
func (s *Store) skillMetaPath(name string) string {
	return filepath.Join(s.dir(storage.KindSkills), name+".meta")
}
func (s *Store) artifactPath(name string) string { return filepath.Join(s.dir(storage.KindArtifacts), name) }
func (s *Store) artifactMetaPath(name string) string {
	return filepath.Join(s.dir(storage.KindArtifacts), name+".meta")
}
func (s *Store) depsPath() string { return filepath.Join(s.dir(storage.KindDeps), depsFile) }

// writeFileAtomic writes data to a randomly-named temp sibling of path
// and renames it into place, so a crash mid-write can never leave a
// truncated entity behind (spec.md's atomic write-then-rename contract
// for the file backend).
func (s *Store) writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp-" + uuid.NewString()
	if err := afero.WriteFile(s.fs, tmp, data, perm); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.fs.Stat(s.basePath)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "storage base path unreachable", err)
	}
	return nil
}

func (s *Store) ToBootstrapConfig() storage.Access {
	return storage.Access{File: &storage.FileAccess{BasePath: s.basePath}}
}

func (s *Store) Get(ctx context.Context, kind storage.Kind, name string) (storage.Entity, error) {
	switch kind {
	case storage.KindSkills:
		return s.getSkill(name)
	case storage.KindArtifacts:
		return s.getArtifact(name)
	case storage.KindDeps:
		return s.getDep(name)
	default:
		return storage.Entity{}, errs.New(errs.KindInvalidRequest, "unknown storage kind")
	}
}

func (s *Store) Put(ctx context.Context, kind storage.Kind, e storage.Entity) error {
	if e.Name == "" {
		return errs.New(errs.KindConflict, "entity name must not be empty")
	}
	switch kind {
	case storage.KindSkills:
		return s.putSkill(e)
	case storage.KindArtifacts:
		return s.putArtifact(e)
	case storage.KindDeps:
		return s.putDep(e)
	default:
		return errs.New(errs.KindInvalidRequest, "unknown storage kind")
	}
}

func (s *Store) Delete(ctx context.Context, kind storage.Kind, name string) (bool, error) {
	switch kind {
	case storage.KindSkills:
		return s.deleteSkill(name)
	case storage.KindArtifacts:
		return s.deleteArtifact(name)
	case storage.KindDeps:
		return s.deleteDep(name)
	default:
		return false, errs.New(errs.KindInvalidRequest, "unknown storage kind")
	}
}

func (s *Store) Exists(ctx context.Context, kind storage.Kind, name string) (bool, error) {
	res, err := s.List(ctx, kind)
	if err != nil {
		return false, err
	}
	for _, e := range res.Entities {
		if e.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) List(ctx context.Context, kind storage.Kind) (storage.ListResult, error) {
	switch kind {
	case storage.KindSkills:
		return s.listSkills()
	case storage.KindArtifacts:
		return s.listArtifacts()
	case storage.KindDeps:
		return s.listDeps()
	default:
		return storage.ListResult{}, errs.New(errs.KindInvalidRequest, "unknown storage kind")
	}
}

// --- skills ---

func (s *Store) getSkill(name string) (storage.Entity, error) {
	data, err := afero.ReadFile(s.fs, s.sourcePath(name))
	if err != nil {
		return storage.Entity{}, errs.Wrap(errs.KindNotFound, "skill not found: "+name, err)
	}
	meta, _ := s.readMeta(s.skillMetaPath(name))
	return storage.Entity{Name: name, Data: data, Meta: meta, CreatedAt: metaCreatedAt(meta)}, nil
}

func (s *Store) putSkill(e storage.Entity) error {
	if err := s.writeFileAtomic(s.sourcePath(e.Name), e.Data, 0o644); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "writing skill source", err)
	}
	return s.writeMeta(s.skillMetaPath(e.Name), e.Meta, e.CreatedAt)
}

func (s *Store) deleteSkill(name string) (bool, error) {
	exists, err := afero.Exists(s.fs, s.sourcePath(name))
	if err != nil {
		return false, errs.Wrap(errs.KindStorageUnavailable, "checking skill existence", err)
	}
	if !exists {
		return false, nil
	}
	_ = s.fs.Remove(s.sourcePath(name))
	_ = s.fs.Remove(s.skillMetaPath(name))
	return true, nil
}

func (s *Store) listSkills() (storage.ListResult, error) {
	infos, err := afero.ReadDir(s.fs, s.dir(storage.KindSkills))
	if err != nil {
		return storage.ListResult{}, errs.Wrap(errs.KindStorageUnavailable, "listing skills", err)
	}
	var res storage.ListResult
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".source") {
			continue
		}
		name := strings.TrimSuffix(info.Name(), ".source")
		e, err := s.getSkill(name)
		if err != nil {
			res.Errors = append(res.Errors, storage.ErrorRecord{Name: name, Error: err.Error()})
			continue
		}
		res.Entities = append(res.Entities, e)
	}
	sortEntities(res.Entities)
	return res, nil
}

// --- artifacts ---

func (s *Store) getArtifact(name string) (storage.Entity, error) {
	data, err := afero.ReadFile(s.fs, s.artifactPath(name))
	if err != nil {
		return storage.Entity{}, errs.Wrap(errs.KindNotFound, "artifact not found: "+name, err)
	}
	meta, _ := s.readMeta(s.artifactMetaPath(name))
	return storage.Entity{Name: name, Data: data, Meta: meta, CreatedAt: metaCreatedAt(meta)}, nil
}

func (s *Store) putArtifact(e storage.Entity) error {
	if err := s.writeFileAtomic(s.artifactPath(e.Name), e.Data, 0o644); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "writing artifact", err)
	}
	return s.writeMeta(s.artifactMetaPath(e.Name), e.Meta, e.CreatedAt)
}

func (s *Store) deleteArtifact(name string) (bool, error) {
	exists, err := afero.Exists(s.fs, s.artifactPath(name))
	if err != nil {
		return false, errs.Wrap(errs.KindStorageUnavailable, "checking artifact existence", err)
	}
	if !exists {
		return false, nil
	}
	_ = s.fs.Remove(s.artifactPath(name))
	_ = s.fs.Remove(s.artifactMetaPath(name))
	return true, nil
}

func (s *Store) listArtifacts() (storage.ListResult, error) {
	infos, err := afero.ReadDir(s.fs, s.dir(storage.KindArtifacts))
	if err != nil {
		return storage.ListResult{}, errs.Wrap(errs.KindStorageUnavailable, "listing artifacts", err)
	}
	var res storage.ListResult
	for _, info := range infos {
		if info.IsDir() || strings.HasSuffix(info.Name(), ".meta") {
			continue
		}
		name := info.Name()
		e, err := s.getArtifact(name)
		if err != nil {
			res.Errors = append(res.Errors, storage.ErrorRecord{Name: name, Error: err.Error()})
			continue
		}
		res.Entities = append(res.Entities, e)
	}
	sortEntities(res.Entities)
	return res, nil
}

// --- deps (single requirements.txt, one spec per line) ---

func (s *Store) readDepsLines() ([]string, error) {
	exists, err := afero.Exists(s.fs, s.depsPath())
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "checking deps file", err)
	}
	if !exists {
		return nil, nil
	}
	data, err := afero.ReadFile(s.fs, s.depsPath())
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "reading deps file", err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func (s *Store) writeDepsLines(lines []string) error {
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := s.writeFileAtomic(s.depsPath(), []byte(content), 0o644); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "writing deps file", err)
	}
	return nil
}

func depName(spec string) string {
	for _, sep := range []string{">=", "<=", "==", "!=", ">", "<", "="} {
		if idx := strings.Index(spec, sep); idx >= 0 {
			return spec[:idx]
		}
	}
	return spec
}

func (s *Store) getDep(name string) (storage.Entity, error) {
	lines, err := s.readDepsLines()
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

func (s *Store) putDep(e storage.Entity) error {
	lines, err := s.readDepsLines()
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
	return s.writeDepsLines(lines)
}

func (s *Store) deleteDep(name string) (bool, error) {
	lines, err := s.readDepsLines()
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
	return true, s.writeDepsLines(out)
}

func (s *Store) listDeps() (storage.ListResult, error) {
	lines, err := s.readDepsLines()
	if err != nil {
		return storage.ListResult{}, err
	}
	var res storage.ListResult
	for _, l := range lines {
		res.Entities = append(res.Entities, storage.Entity{Name: depName(l), Data: []byte(l)})
	}
	return res, nil
}

// --- shared meta sidecar helpers ---

func (s *Store) readMeta(path string) (map[string]any, error) {
	exists, err := afero.Exists(s.fs, path)
	if err != nil || !exists {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errs.Wrap(errs.KindCorrupt, "parsing meta sidecar", err)
	}
	return meta, nil
}

func (s *Store) writeMeta(path string, meta map[string]any, createdAt time.Time) error {
	if meta == nil {
		meta = map[string]any{}
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	meta["created_at"] = createdAt.Format(time.RFC3339Nano)
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshalling meta: %w", err)
	}
	if err := s.writeFileAtomic(path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "writing meta sidecar", err)
	}
	return nil
}

func metaCreatedAt(meta map[string]any) time.Time {
	if meta == nil {
		return time.Time{}
	}
	if v, ok := meta["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func sortEntities(es []storage.Entity) {
	sort.Slice(es, func(i, j int) bool { return es[i].Name < es[j].Name })
}

var _ storage.Store = (*Store)(nil)
