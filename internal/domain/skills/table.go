// Package skills holds the static job-role to required-skill table used to
// gate model confidence.
package skills

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_skills.yaml
var defaultTable []byte

// document is the on-disk YAML shape.
type document struct {
	Roles map[string][]string `yaml:"roles"`
}

type entry struct {
	role     string
	required []string
	lower    []string
}

// Table maps job roles to their ordered required skills. Lookups ignore
// case. A Table is read-only and safe for concurrent use.
type Table struct {
	entries map[string]entry
}

// Parse decodes a YAML skill table.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return New(doc.Roles)
}

// New builds a Table from a role to skills map. Role names must be unique
// ignoring case; duplicate skills within a role are collapsed.
func New(roles map[string][]string) (*Table, error) {
	t := &Table{entries: make(map[string]entry, len(roles))}
	for role, required := range roles {
		name := strings.TrimSpace(role)
		if name == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrInvalidTable)
		}
		key := strings.ToLower(name)
		if prev, dup := t.entries[key]; dup {
			return nil, fmt.Errorf("%w: role %q duplicates %q", ErrInvalidTable, name, prev.role)
		}

		e := entry{role: name}
		seen := make(map[string]struct{}, len(required))
		for _, s := range required {
			s = strings.TrimSpace(s)
			l := strings.ToLower(s)
			if s == "" {
				continue
			}
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			e.required = append(e.required, s)
			e.lower = append(e.lower, l)
		}
		t.entries[key] = e
	}
	return t, nil
}

// LoadFile reads a YAML skill table from path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadTable, err)
	}
	return Parse(data)
}

var (
	defaultOnce sync.Once
	defaultTbl  *Table
)

// Default returns the built-in table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultTable)
		if err != nil {
			panic(fmt.Sprintf("built-in skill table: %v", err))
		}
		defaultTbl = t
	})
	return defaultTbl
}

// Required returns a copy of the skills a role requires, or nil when the
// role is not in the table.
func (t *Table) Required(role string) []string {
	e, ok := t.lookup(role)
	if !ok {
		return nil
	}
	return append([]string(nil), e.required...)
}

// Missing returns the role's required skills absent from have, in table
// order, along with the number of required skills. Comparison ignores case.
func (t *Table) Missing(role string, have []string) (missing []string, required int) {
	e, ok := t.lookup(role)
	if !ok || len(e.required) == 0 {
		return []string{}, 0
	}

	owned := make(map[string]struct{}, len(have))
	for _, s := range have {
		owned[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	missing = make([]string, 0, len(e.required))
	for i, l := range e.lower {
		if _, ok := owned[l]; !ok {
			missing = append(missing, e.required[i])
		}
	}
	return missing, len(e.required)
}

// Roles lists the table's role names in sorted order.
func (t *Table) Roles() []string {
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.role)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of roles.
func (t *Table) Len() int { return len(t.entries) }

func (t *Table) lookup(role string) (entry, bool) {
	if t == nil {
		return entry{}, false
	}
	e, ok := t.entries[strings.ToLower(strings.TrimSpace(role))]
	return e, ok
}
