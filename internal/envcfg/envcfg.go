// Package envcfg is a centralized, self-registering registry for the
// environment variables consumed by the execution engine. Calling any
// Register* function records the variable's metadata (name, default,
// description) in a process-wide registry and returns a typed accessor,
// so the set of configuration knobs is both typed and self-documenting.
package envcfg

import (
	"os"
	"strconv"
	"sync"
	"time"
)

// Component names the subsystem that owns a variable, for Describe() output.
type Component string

const (
	ComponentStorage  Component = "storage"
	ComponentExecutor Component = "executor"
	ComponentServer   Component = "server"
	ComponentDeps     Component = "deps"
)

type varMeta struct {
	Name        string
	Default     string
	Description string
	Component   Component
}

var (
	mu       sync.Mutex
	registry []varMeta
)

func register(m varMeta) {
	mu.Lock()
	defer mu.Unlock()
	registry = append(registry, m)
}

// Describe returns the metadata for every registered variable, in
// registration order, for self-documentation.
func Describe() []varMeta {
	mu.Lock()
	defer mu.Unlock()
	out := make([]varMeta, len(registry))
	copy(out, registry)
	return out
}

// StringVar is a typed accessor for a string environment variable.
type StringVar struct{ meta varMeta }

func RegisterStringVar(name, def, desc string, c Component) StringVar {
	m := varMeta{Name: name, Default: def, Description: desc, Component: c}
	register(m)
	return StringVar{meta: m}
}

func (v StringVar) Get() string {
	if val, ok := os.LookupEnv(v.meta.Name); ok {
		return val
	}
	return v.meta.Default
}

// BoolVar is a typed accessor for a boolean environment variable.
type BoolVar struct{ meta varMeta }

func RegisterBoolVar(name string, def bool, desc string, c Component) BoolVar {
	m := varMeta{Name: name, Default: strconv.FormatBool(def), Description: desc, Component: c}
	register(m)
	return BoolVar{meta: m}
}

func (v BoolVar) Get() bool {
	if val, ok := os.LookupEnv(v.meta.Name); ok {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	b, _ := strconv.ParseBool(v.meta.Default)
	return b
}

// IntVar is a typed accessor for an integer environment variable.
type IntVar struct{ meta varMeta }

func RegisterIntVar(name string, def int, desc string, c Component) IntVar {
	m := varMeta{Name: name, Default: strconv.Itoa(def), Description: desc, Component: c}
	register(m)
	return IntVar{meta: m}
}

func (v IntVar) Get() int {
	if val, ok := os.LookupEnv(v.meta.Name); ok {
		i, err := strconv.Atoi(val)
		if err == nil {
			return i
		}
	}
	i, _ := strconv.Atoi(v.meta.Default)
	return i
}

// DurationVar is a typed accessor for a duration environment variable.
type DurationVar struct{ meta varMeta }

func RegisterDurationVar(name string, def time.Duration, desc string, c Component) DurationVar {
	m := varMeta{Name: name, Default: def.String(), Description: desc, Component: c}
	register(m)
	return DurationVar{meta: m}
}

func (v DurationVar) Get() time.Duration {
	if val, ok := os.LookupEnv(v.meta.Name); ok {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	d, _ := time.ParseDuration(v.meta.Default)
	return d
}
