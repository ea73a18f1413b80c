package tooling

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kagent-dev/codesession/internal/errs"
)

// Registry holds multiple adapters and routes calls by tool name, which
// must be unique across all adapters registered into it.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	adapters map[string]Adapter // tool name -> owning adapter
	all      []Adapter
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}, adapters: map[string]Adapter{}}
}

// Register loads every tool from adapter and adds it to the registry,
// failing with DuplicateTool on a name collision against any previously
// registered adapter.
func (r *Registry) Register(ctx context.Context, adapter Adapter) error {
	tools, err := adapter.ListTools(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if _, exists := r.tools[t.Name]; exists {
			return errs.New(errs.KindDuplicateTool, "tool already registered: "+t.Name)
		}
	}
	for _, t := range tools {
		r.tools[t.Name] = t
		r.adapters[t.Name] = adapter
	}
	r.all = append(r.all, adapter)
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Search ranks tools by keyword match over name|description|tags, as
// specified for the namespace-layer default when no semantic backend is
// wired (spec.md §4.D).
func (r *Registry) Search(query string) []Summary {
	q := strings.ToLower(strings.TrimSpace(query))
	all := r.List()
	if q == "" {
		return all
	}
	type scored struct {
		s     Summary
		score int
	}
	var matches []scored
	for _, s := range all {
		score := 0
		if strings.Contains(strings.ToLower(s.Name), q) {
			score += 3
		}
		if strings.Contains(strings.ToLower(s.Description), q) {
			score += 2
		}
		for _, tag := range s.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{s: s, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].s.Name < matches[j].s.Name
	})
	out := make([]Summary, len(matches))
	for i, m := range matches {
		out[i] = m.s
	}
	return out
}

// Call routes tool.recipe(args) to the owning adapter. recipeName == ""
// indicates the escape-hatch invocation.
func (r *Registry) Call(ctx context.Context, toolName, recipeName string, args map[string]any) (any, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[toolName]
	_, toolExists := r.tools[toolName]
	r.mu.RUnlock()
	if !ok || !toolExists {
		return nil, errs.New(errs.KindNotFound, "unknown tool: "+toolName)
	}
	return adapter.Call(ctx, toolName, recipeName, args)
}

// Close shuts down every registered adapter, collecting errors.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var first error
	for _, a := range r.all {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
