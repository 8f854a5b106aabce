// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

type (
	// Definition is the plain-data input to New. Callers build a Definition (by hand
	// or from a channel file) and turn it into an immutable Recipe.
	Definition struct {
		Name        string
		Version     string
		Synopsis    string
		Description string
		Homepage    string
		License     string
		Source      SourceRef
		Inputs      []InputRef
		BuildSystem string
		Phases      []PhaseOverride
		Params      map[string]string
		Install     []InstallEntry
	}

	// Recipe is an immutable, validated package description.
	Recipe struct {
		id          Identity
		synopsis    string
		description string
		homepage    string
		license     string
		source      SourceRef
		inputs      []InputRef
		buildSystem string
		phases      []PhaseOverride
		params      map[string]string
		install     []InstallEntry
	}

	// Option configures recipe construction.
	Option func(*options)

	options struct {
		catalog Catalog
	}
)

// WithBaseSequences makes New check the build system and every override anchor
// against the given catalog.
func WithBaseSequences(c Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// New validates def and returns the corresponding Recipe.
// It returns a *ValidationError listing every violation.
func New(def Definition, opts ...Option) (*Recipe, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if def.Source == nil {
		def.Source = NoSource{}
	}

	id := Identity{Name: def.Name, Version: def.Version}
	if errs := validateDefinition(def, o.catalog); len(errs) > 0 {
		return nil, &ValidationError{Recipe: id, FieldErrors: errs}
	}

	return &Recipe{
		id:          id,
		synopsis:    def.Synopsis,
		description: def.Description,
		homepage:    def.Homepage,
		license:     def.License,
		source:      def.Source,
		inputs:      slices.Clone(def.Inputs),
		buildSystem: def.BuildSystem,
		phases:      slices.Clone(def.Phases),
		params:      maps.Clone(def.Params),
		install:     cloneInstall(def.Install),
	}, nil
}

// MustNew is like New but panics on error. Intended for recipes defined in Go code.
func MustNew(def Definition, opts ...Option) *Recipe {
	r, err := New(def, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Identity returns the recipe identity.
func (r *Recipe) Identity() Identity { return r.id }

// Name returns the recipe name.
func (r *Recipe) Name() string { return r.id.Name }

// Version returns the recipe version.
func (r *Recipe) Version() string { return r.id.Version }

// Synopsis returns the one-line summary.
func (r *Recipe) Synopsis() string { return r.synopsis }

// Description returns the long description.
func (r *Recipe) Description() string { return r.description }

// Homepage returns the upstream homepage.
func (r *Recipe) Homepage() string { return r.homepage }

// License returns the license text (e.g. "nonfree").
func (r *Recipe) License() string { return r.license }

// Source returns the source reference.
func (r *Recipe) Source() SourceRef { return r.source }

// Inputs returns a copy of the declared inputs in declaration order.
func (r *Recipe) Inputs() []InputRef { return slices.Clone(r.inputs) }

// BuildSystem returns the base sequence name the phases override.
func (r *Recipe) BuildSystem() string { return r.buildSystem }

// Phases returns a copy of the phase overrides in declaration order.
func (r *Recipe) Phases() []PhaseOverride { return slices.Clone(r.phases) }

// Params returns a copy of the static parameters.
func (r *Recipe) Params() map[string]string { return maps.Clone(r.params) }

// Install returns a copy of the install plan.
func (r *Recipe) Install() []InstallEntry { return cloneInstall(r.install) }

// Definition returns a Definition equal to the one the recipe was built from.
func (r *Recipe) Definition() Definition {
	return Definition{
		Name:        r.id.Name,
		Version:     r.id.Version,
		Synopsis:    r.synopsis,
		Description: r.description,
		Homepage:    r.homepage,
		License:     r.license,
		Source:      r.source,
		Inputs:      r.Inputs(),
		BuildSystem: r.buildSystem,
		Phases:      r.Phases(),
		Params:      r.Params(),
		Install:     r.Install(),
	}
}

func validateDefinition(def Definition, catalog Catalog) []error {
	var errs []error
	errs = append(errs, validateIdentifier("name", def.Name)...)
	errs = append(errs, validateIdentifier("version", def.Version)...)
	errs = append(errs, def.Source.validate()...)

	labels := make(map[string]int, len(def.Inputs))
	for i, in := range def.Inputs {
		if strings.TrimSpace(in.Name) == "" {
			errs = append(errs, fmt.Errorf("inputs[%d]: name must not be empty", i))
			continue
		}
		label := in.EffectiveLabel()
		if first, dup := labels[label]; dup {
			errs = append(errs, fmt.Errorf("inputs[%d]: duplicate label %q (same as inputs[%d])", i, label, first))
			continue
		}
		labels[label] = i
	}

	if strings.TrimSpace(def.BuildSystem) == "" {
		errs = append(errs, fmt.Errorf("build_system must not be empty"))
	}
	for i, o := range def.Phases {
		if o == nil {
			errs = append(errs, fmt.Errorf("phases[%d]: override must not be nil", i))
			continue
		}
		for _, err := range o.validate() {
			errs = append(errs, fmt.Errorf("phases[%d]: %w", i, err))
		}
	}

	for i, e := range def.Install {
		errs = append(errs, e.validate(i)...)
	}

	// Anchors can only be checked once the overrides themselves are well-formed.
	if len(errs) == 0 && catalog != nil {
		base, ok := catalog[def.BuildSystem]
		if !ok {
			errs = append(errs, fmt.Errorf("build_system %q is unknown (valid: %s)",
				def.BuildSystem, strings.Join(catalog.Names(), ", ")))
		} else if _, err := base.Derive(def.Phases); err != nil {
			errs = append(errs, fmt.Errorf("phases: %w", err))
		}
	}
	return errs
}

func validateIdentifier(field, v string) []error {
	switch {
	case strings.TrimSpace(v) == "":
		return []error{fmt.Errorf("%s must not be empty", field)}
	case strings.ContainsAny(v, " \t\n@/\\"):
		return []error{fmt.Errorf("%s %q must not contain whitespace, '@' or path separators", field, v)}
	case v == "." || v == "..":
		return []error{fmt.Errorf("%s %q is reserved", field, v)}
	}
	return nil
}

func cloneInstall(entries []InstallEntry) []InstallEntry {
	if entries == nil {
		return nil
	}
	out := make([]InstallEntry, len(entries))
	for i, e := range entries {
		e.Include = slices.Clone(e.Include)
		e.Exclude = slices.Clone(e.Exclude)
		e.IncludeRegexp = slices.Clone(e.IncludeRegexp)
		e.ExcludeRegexp = slices.Clone(e.ExcludeRegexp)
		out[i] = e
	}
	return out
}
