package depctl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kagent-dev/codesession/internal/errs"
)

// specRe matches `name(version-op version)?` where name is a canonical
// package identifier (letters, digits, `.`, `_`, `-`).
var specRe = regexp.MustCompile(`^([A-Za-z0-9_.-]+)((?:==|!=|>=|<=|~=|>|<)[A-Za-z0-9_.*]+)?$`)

// ParseSpec validates and splits a dependency spec into its canonical
// name and version constraint (empty if unconstrained). Rejects `@`,
// `;`, whitespace, and URL schemes per spec.md §4.F.
func ParseSpec(spec string) (name, constraint string, err error) {
	if spec == "" {
		return "", "", errs.New(errs.KindInvalidDepSpec, "dependency spec must not be empty")
	}
	if strings.ContainsAny(spec, "@; \t\n") || strings.Contains(spec, "://") {
		return "", "", errs.New(errs.KindInvalidDepSpec, fmt.Sprintf("invalid dependency spec: %q", spec))
	}
	m := specRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", errs.New(errs.KindInvalidDepSpec, fmt.Sprintf("invalid dependency spec: %q", spec))
	}
	return m[1], m[2], nil
}
