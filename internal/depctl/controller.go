package depctl

import (
	"context"
	"fmt"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/storage"
)

// Controller implements the deps namespace's policy-gated add/remove
// plus unconditional list/sync (spec.md §4.F).
type Controller struct {
	store              storage.Store
	installer          Installer
	mutationAllowed    func() bool
}

func NewController(store storage.Store, installer Installer, mutationAllowed func() bool) *Controller {
	return &Controller{store: store, installer: installer, mutationAllowed: mutationAllowed}
}

// Add validates spec, checks policy, records it, and installs it;
// rolls the store entry back on install failure.
func (c *Controller) Add(ctx context.Context, spec string) (string, error) {
	name, _, err := ParseSpec(spec)
	if err != nil {
		return "", err
	}
	if !c.mutationAllowed() {
		return "", errs.New(errs.KindRuntimeDepsDisabled, "runtime dependency mutation is disabled")
	}

	existed, err := c.store.Exists(ctx, storage.KindDeps, name)
	if err != nil {
		return "", err
	}
	var prior storage.Entity
	if existed {
		prior, err = c.store.Get(ctx, storage.KindDeps, name)
		if err != nil {
			return "", err
		}
	}

	if err := c.store.Put(ctx, storage.KindDeps, storage.Entity{Name: name, Data: []byte(spec)}); err != nil {
		return "", err
	}

	res, err := c.installer.Install(ctx, []string{spec})
	if err != nil {
		c.rollback(ctx, name, existed, prior)
		return "", errs.Wrap(errs.KindInstallFailed, "installer invocation failed", err)
	}
	if msg, failed := res.Failed[spec]; failed {
		c.rollback(ctx, name, existed, prior)
		return "", errs.New(errs.KindInstallFailed, msg)
	}
	for _, s := range res.Installed {
		if s == spec {
			return "installed", nil
		}
	}
	return "already_present", nil
}

func (c *Controller) rollback(ctx context.Context, name string, existed bool, prior storage.Entity) {
	if existed {
		_ = c.store.Put(ctx, storage.KindDeps, prior)
	} else {
		_, _ = c.store.Delete(ctx, storage.KindDeps, name)
	}
}

// Remove is policy-gated identically to Add; does not uninstall from
// the environment (store reflects declared dependencies only).
func (c *Controller) Remove(ctx context.Context, spec string) (bool, error) {
	name, _, err := ParseSpec(spec)
	if err != nil {
		return false, err
	}
	if !c.mutationAllowed() {
		return false, errs.New(errs.KindRuntimeDepsDisabled, "runtime dependency mutation is disabled")
	}
	return c.store.Delete(ctx, storage.KindDeps, name)
}

// List unconditionally returns the declared specs.
func (c *Controller) List(ctx context.Context) ([]string, error) {
	res, err := c.store.List(ctx, storage.KindDeps)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(res.Entities))
	for i, e := range res.Entities {
		out[i] = string(e.Data)
	}
	return out, nil
}

// Sync installs every declared dep not currently importable. Always
// permitted even when runtime mutation is disabled, since sync only
// fulfills pre-declared intent.
func (c *Controller) Sync(ctx context.Context) (InstallResult, error) {
	specs, err := c.List(ctx)
	if err != nil {
		return InstallResult{}, err
	}
	if len(specs) == 0 {
		return InstallResult{Failed: map[string]string{}}, nil
	}
	res, err := c.installer.Install(ctx, specs)
	if err != nil {
		return InstallResult{}, errs.Wrap(errs.KindInstallFailed, fmt.Sprintf("sync failed for %d spec(s)", len(specs)), err)
	}
	return res, nil
}
