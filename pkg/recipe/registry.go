// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/mod/semver"
)

var (
	// ErrRecipeNotFound is returned when no registered recipe matches a reference.
	ErrRecipeNotFound = errors.New("recipe not found")

	// ErrDuplicateRecipe is returned when the same identity is registered twice.
	ErrDuplicateRecipe = errors.New("duplicate recipe")
)

type (
	// Registry is an in-memory set of recipes keyed by Identity.
	// It is safe for concurrent use.
	Registry struct {
		mu      sync.RWMutex
		catalog Catalog
		recipes map[Identity]*Recipe
	}

	// NotFoundError reports a lookup that matched no recipe.
	NotFoundError struct {
		Name    string
		Version string
		// Known lists the registered versions of Name, if any.
		Known []string
	}
)

// NewRegistry creates an empty registry. A non-nil catalog makes Add reject
// recipes whose build system or overrides do not fit it.
func NewRegistry(catalog Catalog) *Registry {
	return &Registry{
		catalog: catalog,
		recipes: make(map[Identity]*Recipe),
	}
}

// Catalog returns the base sequence catalog the registry validates against.
func (reg *Registry) Catalog() Catalog { return reg.catalog }

// Add registers r. It fails if r's identity is already registered.
func (reg *Registry) Add(r *Recipe) error {
	if reg.catalog != nil {
		if _, err := New(r.Definition(), WithBaseSequences(reg.catalog)); err != nil {
			return err
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, dup := reg.recipes[r.id]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateRecipe, r.id)
	}
	reg.recipes[r.id] = r
	return nil
}

// Get returns the recipe with exactly the given identity.
func (reg *Registry) Get(id Identity) (*Recipe, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if r, ok := reg.recipes[id]; ok {
		return r, nil
	}
	return nil, &NotFoundError{Name: id.Name, Version: id.Version, Known: reg.versionsLocked(id.Name)}
}

// Lookup returns the recipe named name at version. An empty version selects
// the newest registered version.
func (reg *Registry) Lookup(name, version string) (*Recipe, error) {
	if version != "" {
		return reg.Get(Identity{Name: name, Version: version})
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()
	versions := reg.versionsLocked(name)
	if len(versions) == 0 {
		return nil, &NotFoundError{Name: name}
	}
	return reg.recipes[Identity{Name: name, Version: versions[len(versions)-1]}], nil
}

// Resolve looks up a "name" or "name@version" reference.
func (reg *Registry) Resolve(ref string) (*Recipe, error) {
	name, version, err := ParseReference(ref)
	if err != nil {
		return nil, err
	}
	return reg.Lookup(name, version)
}

// Versions returns the registered versions of name, oldest first.
func (reg *Registry) Versions(name string) []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.versionsLocked(name)
}

// All returns every registered recipe sorted by name, then version.
func (reg *Registry) All() []*Recipe {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Recipe, 0, len(reg.recipes))
	for _, r := range reg.recipes {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Recipe) int {
		if c := strings.Compare(a.id.Name, b.id.Name); c != 0 {
			return c
		}
		return CompareVersions(a.id.Version, b.id.Version)
	})
	return out
}

// Len returns the number of registered recipes.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.recipes)
}

func (reg *Registry) versionsLocked(name string) []string {
	var versions []string
	for id := range reg.recipes {
		if id.Name == name {
			versions = append(versions, id.Version)
		}
	}
	slices.SortFunc(versions, CompareVersions)
	return versions
}

// CompareVersions orders two recipe versions. Versions that parse as semantic
// versions (with or without a leading "v") sort by semver precedence and after
// any that don't; the rest compare lexically.
func CompareVersions(a, b string) int {
	sa, sb := canonicalSemver(a), canonicalSemver(b)
	switch {
	case sa != "" && sb != "":
		if c := semver.Compare(sa, sb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case sa != "":
		return 1
	case sb != "":
		return -1
	default:
		return strings.Compare(a, b)
	}
}

func canonicalSemver(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	ref := e.Name
	if e.Version != "" {
		ref += "@" + e.Version
	}
	if len(e.Known) > 0 {
		return fmt.Sprintf("recipe %s not found (known versions: %s)", ref, strings.Join(e.Known, ", "))
	}
	return fmt.Sprintf("recipe %s not found", ref)
}

// Unwrap returns ErrRecipeNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrRecipeNotFound }
