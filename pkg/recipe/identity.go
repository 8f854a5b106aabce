// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"fmt"
	"strings"
)

// Identity uniquely identifies a recipe within a registry.
type Identity struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Version string `json:"version" yaml:"version" toml:"version"`
}

// String returns the "name@version" form of the identity.
func (id Identity) String() string {
	return id.Name + "@" + id.Version
}

// Dirname returns the store directory name for the identity ("name-version").
func (id Identity) Dirname() string {
	return id.Name + "-" + id.Version
}

// ParseReference splits a "name" or "name@version" reference.
// An empty version means "newest registered version".
func ParseReference(ref string) (name, version string, err error) {
	name, version, _ = strings.Cut(strings.TrimSpace(ref), "@")
	if name == "" {
		return "", "", fmt.Errorf("invalid recipe reference %q: empty name", ref)
	}
	return name, version, nil
}
