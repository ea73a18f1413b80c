package namespace

import (
	"context"

	"github.com/kagent-dev/codesession/internal/artifact"
	"github.com/kagent-dev/codesession/internal/depctl"
	"github.com/kagent-dev/codesession/internal/envcfg"
	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/evalengine"
	"github.com/kagent-dev/codesession/internal/skill"
	"github.com/kagent-dev/codesession/internal/skill/embedding"
	"github.com/kagent-dev/codesession/internal/storage"
	"github.com/kagent-dev/codesession/internal/storage/filestore"
	"github.com/kagent-dev/codesession/internal/storage/kvstore"
	"github.com/kagent-dev/codesession/internal/tooling"
	"github.com/kagent-dev/codesession/internal/tooling/cli"
	"github.com/spf13/afero"
)

// Dict is the fully assembled namespace dict: the four injected roots
// plus the backing store; NewInterp builds an evalengine.Interp wired
// to dispatch into them.
// This is the "namespace dict" spec.md refers to throughout §4.
type Dict struct {
	Tools     *ToolsRoot
	Skills    *SkillsRoot
	Artifacts *ArtifactsRoot
	Deps      *DepsRoot

	Store storage.Store
}

// NewInterp builds an evalengine.Interp bound to d's four roots, with
// print writing to the given stdout sink.
func (d *Dict) NewInterp(print func(string)) *evalengine.Interp {
	roots := map[string]evalengine.NamespaceRoot{
		"tools":     d.Tools,
		"skills":    d.Skills,
		"artifacts": d.Artifacts,
		"deps":      d.Deps,
	}
	ip := evalengine.NewInterp(roots, print)
	d.Tools.bindInterp(ip)
	d.Skills.bindInterp(ip)
	return ip
}

// DepsConfig configures the dependency controller a Dict wires up.
type DepsConfig struct {
	Installer       depctl.Installer
	MutationAllowed func() bool
}

func defaultDepsConfig() DepsConfig {
	return DepsConfig{
		Installer:       depctl.NewExecInstaller("pip", []string{"install"}),
		MutationAllowed: func() bool { return envcfg.DepsRuntimeMutationAllowed.Get() },
	}
}

// Bootstrap reconstructs an identical namespace Dict from a
// StorageAccess descriptor plus tools path and deps config, so an
// in-process executor and a freshly started remote kernel/container
// see the same tools/skills/artifacts (spec.md §4.H). This is the
// single point of namespace construction.
func Bootstrap(ctx context.Context, access storage.Access, toolsPath string, deps DepsConfig) (*Dict, error) {
	store, err := openStore(ctx, access)
	if err != nil {
		return nil, err
	}

	registry := tooling.NewRegistry()
	if toolsPath != "" {
		adapter, err := cli.NewAdapter(toolsPath)
		if err != nil {
			return nil, errs.Wrap(errs.KindStorageUnavailable, "loading tool definitions", err)
		}
		if err := registry.Register(ctx, adapter); err != nil {
			return nil, err
		}
	}

	if deps.Installer == nil || deps.MutationAllowed == nil {
		d := defaultDepsConfig()
		if deps.Installer == nil {
			deps.Installer = d.Installer
		}
		if deps.MutationAllowed == nil {
			deps.MutationAllowed = d.MutationAllowed
		}
	}

	lib := skill.NewLibrary(store, embedding.NewHashEmbedder())
	art := artifact.NewStore(store)
	ctl := depctl.NewController(store, deps.Installer, deps.MutationAllowed)

	return &Dict{
		Tools:     &ToolsRoot{Registry: registry},
		Skills:    &SkillsRoot{Library: lib},
		Artifacts: &ArtifactsRoot{Store: art},
		Deps:      &DepsRoot{Controller: ctl},
		Store:     store,
	}, nil
}

func openStore(ctx context.Context, access storage.Access) (storage.Store, error) {
	switch {
	case access.File != nil:
		return filestore.New(afero.NewOsFs(), access.File.BasePath)
	case access.KV != nil:
		return kvstore.New(ctx, access.KV.ConnectionURL, access.KV.Prefix)
	default:
		return nil, errs.New(errs.KindInvalidRequest, "storage access descriptor has neither file nor kv set")
	}
}
