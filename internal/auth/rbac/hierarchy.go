// Package rbac resolves held roles into every role they imply by seniority.
package rbac

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidHierarchy = errors.New("rbac: invalid hierarchy")

// Hierarchy maps a role to every role it subsumes, itself included. It is
// immutable once built; share it freely across goroutines.
type Hierarchy struct {
	implies map[string][]string
}

// Default returns the built-in table:
//
//	admin    -> admin, manager, hr, employee
//	manager  -> manager, hr, employee
//	hr       -> hr, employee
//	employee -> employee
func Default() *Hierarchy {
	h, _ := New(map[string][]string{
		"admin":    {"manager", "hr", "employee"},
		"manager":  {"hr", "employee"},
		"hr":       {"employee"},
		"employee": nil,
	})
	return h
}

// New builds a hierarchy from a role -> subsumed roles table. Names are
// normalised and every role is made reflexive, so callers need not list a
// role under itself.
func New(table map[string][]string) (*Hierarchy, error) {
	h := &Hierarchy{implies: make(map[string][]string, len(table))}
	for role, subs := range table {
		name := Normalize(role)
		if name == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrInvalidHierarchy)
		}
		if _, dup := h.implies[name]; dup {
			return nil, fmt.Errorf("%w: role %q listed twice", ErrInvalidHierarchy, name)
		}

		set := []string{name}
		for _, s := range subs {
			n := Normalize(s)
			if n == "" {
				return nil, fmt.Errorf("%w: empty role under %q", ErrInvalidHierarchy, name)
			}
			set = append(set, n)
		}
		slices.Sort(set)
		h.implies[name] = slices.Compact(set)
	}
	return h, nil
}

// file is the on-disk YAML shape:
//
//	roles:
//	  admin: [manager, hr, employee]
//	  manager: [hr, employee]
type file struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadHierarchy reads a YAML role table from path.
func LoadHierarchy(path string) (*Hierarchy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidHierarchy, path, err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("%w: %s defines no roles", ErrInvalidHierarchy, path)
	}
	return New(f.Roles)
}

// Expand returns the sorted, de-duplicated union of everything the held
// roles imply. Unknown roles imply only themselves.
func (h *Hierarchy) Expand(held []string) []string {
	out := make([]string, 0, len(held)*2)
	for _, r := range held {
		name := Normalize(r)
		if name == "" {
			continue
		}
		if subs, ok := h.implies[name]; ok {
			out = append(out, subs...)
		} else {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Roles lists the roles the table knows about, sorted.
func (h *Hierarchy) Roles() []string {
	out := make([]string, 0, len(h.implies))
	for r := range h.implies {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Contains reports whether role is in an already expanded set.
func Contains(expanded []string, role string) bool {
	_, ok := slices.BinarySearch(expanded, Normalize(role))
	return ok
}

// Intersects reports whether any of want is in the expanded set.
func Intersects(expanded []string, want ...string) bool {
	for _, w := range want {
		if Contains(expanded, w) {
			return true
		}
	}
	return false
}

// Normalize lowercases and trims a role name.
func Normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
