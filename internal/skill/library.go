package skill

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/evalengine"
	"github.com/kagent-dev/codesession/internal/skill/embedding"
	"github.com/kagent-dev/codesession/internal/storage"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// Library is the storage-backed skill CRUD, compile, and invocation
// surface behind the `skills` namespace (spec.md §4.D, §4.E).
type Library struct {
	store    storage.Store
	embedder embedding.Embedder
}

func NewLibrary(store storage.Store, embedder embedding.Embedder) *Library {
	if embedder == nil {
		embedder = embedding.NewHashEmbedder()
	}
	return &Library{store: store, embedder: embedder}
}

func contentHash(source, description string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + description))
	return hex.EncodeToString(sum[:])
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func metaVector(meta map[string]any) []float64 {
	v, ok := meta["embedding"]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		if f, ok := v.([]float64); ok {
			return f
		}
		return nil
	}
	out := make([]float64, len(raw))
	for i, x := range raw {
		f, ok := x.(float64)
		if !ok {
			return nil
		}
		out[i] = f
	}
	return out
}

func (l *Library) compile(source string) (*compiled, error) {
	prog, err := evalengine.Compile(source)
	if err != nil {
		return nil, errs.Wrap(errs.KindSyntaxError, "skill source failed to parse", err)
	}
	decl, err := prog.RunDecl()
	if err != nil {
		return nil, errs.Wrap(errs.KindSyntaxError, "skill source invalid", err)
	}
	return &compiled{program: prog, decl: decl}, nil
}

func summaryFromEntity(e storage.Entity) Summary {
	return Summary{
		Name:        e.Name,
		Description: metaString(e.Meta, "description"),
		CreatedAt:   e.CreatedAt,
	}
}

// List returns summaries for every stored skill, including corrupt
// entries (listed by name with Error set, excluded from invocation).
func (l *Library) List(ctx context.Context) ([]Summary, error) {
	res, err := l.store.List(ctx, storage.KindSkills)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(res.Entities)+len(res.Errors))
	for _, e := range res.Entities {
		s := summaryFromEntity(e)
		c, cerr := l.compile(string(e.Data))
		if cerr != nil {
			s.Error = cerr.Error()
		} else {
			s.Parameters = paramsFromDecl(c.decl)
		}
		out = append(out, s)
	}
	for _, er := range res.Errors {
		out = append(out, Summary{Name: er.Name, Error: er.Error})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the full record (including source) for name.
func (l *Library) Get(ctx context.Context, name string) (Record, error) {
	e, err := l.store.Get(ctx, storage.KindSkills, name)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Summary: summaryFromEntity(e), Source: string(e.Data)}
	c, cerr := l.compile(rec.Source)
	if cerr != nil {
		rec.Error = cerr.Error()
		return rec, nil
	}
	rec.Parameters = paramsFromDecl(c.decl)
	return rec, nil
}

// Create validates name, compiles source (must define a single
// top-level fn run), persists, and updates the embedding cache.
// DuplicateSkill unless overwrite is true.
func (l *Library) Create(ctx context.Context, name, source, description string, overwrite bool) error {
	if !nameRe.MatchString(name) {
		return errs.New(errs.KindInvalidRequest, fmt.Sprintf("invalid skill name: %q", name))
	}
	if _, err := l.compile(source); err != nil {
		return err
	}
	if !overwrite {
		exists, err := l.store.Exists(ctx, storage.KindSkills, name)
		if err != nil {
			return err
		}
		if exists {
			return errs.New(errs.KindDuplicateSkill, fmt.Sprintf("skill already exists: %s", name))
		}
	}

	vecs, err := l.embedder.Embed(ctx, []string{description})
	meta := map[string]any{
		"description":  description,
		"content_hash": contentHash(source, description),
	}
	if err == nil && len(vecs) == 1 {
		meta["embedding"] = vecs[0]
	}
	return l.store.Put(ctx, storage.KindSkills, storage.Entity{
		Name: name,
		Data: []byte(source),
		Meta: meta,
	})
}

// Delete is idempotent: returns false if name was never present.
func (l *Library) Delete(ctx context.Context, name string) (bool, error) {
	return l.store.Delete(ctx, storage.KindSkills, name)
}

// Invoke binds kwargs against the skill's fn run signature and
// executes it with interp's shared namespace roots still in effect, so
// the skill may call tools/skills/artifacts exactly as top-level agent
// code does (spec.md §4.D: "same namespace dict").
func (l *Library) Invoke(ctx context.Context, interp *evalengine.Interp, name string, args []any, kwargs map[string]any) (any, error) {
	e, err := l.store.Get(ctx, storage.KindSkills, name)
	if err != nil {
		return nil, err
	}
	c, err := l.compile(string(e.Data))
	if err != nil {
		return nil, errs.Wrap(errs.KindSkillError, fmt.Sprintf("skill %q is corrupt", name), err)
	}
	val, err := interp.CallDecl(ctx, *c.decl, args, kwargs)
	if err != nil {
		if errs.KindOf(err) == errs.KindMissingArgument || errs.KindOf(err) == errs.KindUnknownArgument {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindSkillError, fmt.Sprintf("skill %q failed", name), err)
	}
	return val, nil
}

// Search ranks stored skills by cosine similarity of their description
// embeddings to query, returning at most limit results. Falls back to
// a deterministic substring match when no entity has a usable cached
// embedding (pluggable-embedder absence per spec.md §4.E).
func (l *Library) Search(ctx context.Context, query string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 5
	}
	res, err := l.store.List(ctx, storage.KindSkills)
	if err != nil {
		return nil, err
	}

	qvecs, qerr := l.embedder.Embed(ctx, []string{query})
	var qvec []float64
	if qerr == nil && len(qvecs) == 1 {
		qvec = qvecs[0]
	}

	var all []scoredSkill
	anyVector := false
	for _, e := range res.Entities {
		s := summaryFromEntity(e)
		c, cerr := l.compile(string(e.Data))
		if cerr != nil {
			continue
		}
		s.Parameters = paramsFromDecl(c.decl)

		vec := l.refreshedVector(ctx, e)
		if vec != nil && qvec != nil {
			anyVector = true
			all = append(all, scoredSkill{s: s, score: embedding.Cosine(qvec, vec)})
			continue
		}
		score := 0.0
		if strings.Contains(strings.ToLower(s.Description), strings.ToLower(query)) ||
			strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) {
			score = 1
		}
		all = append(all, scoredSkill{s: s, score: score})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].s.Name < all[j].s.Name
	})
	if !anyVector {
		nonzero := all[:0]
		for _, x := range all {
			if x.score > 0 {
				nonzero = append(nonzero, x)
			}
		}
		all = nonzero
	}

	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]Summary, len(all))
	for i, sc := range all {
		out[i] = sc.s
	}
	return out, nil
}

type scoredSkill struct {
	s     Summary
	score float64
}

// refreshedVector returns e's cached embedding if its content hash is
// still current, otherwise recomputes and persists it (spec.md §4.E:
// "cache invalidated when source or description changes").
func (l *Library) refreshedVector(ctx context.Context, e storage.Entity) []float64 {
	desc := metaString(e.Meta, "description")
	want := contentHash(string(e.Data), desc)
	if metaString(e.Meta, "content_hash") == want {
		if v := metaVector(e.Meta); v != nil {
			return v
		}
	}
	vecs, err := l.embedder.Embed(ctx, []string{desc})
	if err != nil || len(vecs) != 1 {
		return nil
	}
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta["content_hash"] = want
	e.Meta["embedding"] = vecs[0]
	_ = l.store.Put(ctx, storage.KindSkills, e)
	return vecs[0]
}
