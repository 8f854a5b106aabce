// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	// ErrUnknownPhase is wrapped by an OverrideError whose anchor or target is
	// not in the sequence.
	ErrUnknownPhase = errors.New("unknown phase")
	// ErrDuplicatePhase is wrapped by an OverrideError that inserts a name the
	// sequence already has.
	ErrDuplicatePhase = errors.New("duplicate phase")
)

type (
	// PhaseFunc is the body of one build phase. It may mutate env.StagingDir freely.
	PhaseFunc func(ctx context.Context, env *PhaseEnv) error

	// PhaseEnv is everything a phase can see while it runs.
	PhaseEnv struct {
		// Recipe is the identity of the recipe being built.
		Recipe Identity
		// BuildID identifies this build run in logs and receipts.
		BuildID string
		// StagingDir is the exclusive scratch tree of this build.
		StagingDir string
		// SourcePath is the fetched source (file or directory), or "" for NoSource recipes.
		SourcePath string
		// Inputs are the realized inputs in declaration order.
		Inputs []ResolvedInput
		// Params are the recipe's static parameters.
		Params map[string]string
		Stdout io.Writer
		Stderr io.Writer
		Logger *log.Logger
	}

	// Phase is a named step of a phase sequence.
	Phase struct {
		Name string
		Fn   PhaseFunc
	}

	// BaseSequence is a named, ordered list of default phases that recipes override.
	BaseSequence struct {
		Name   string
		Phases []Phase
	}

	// Catalog maps base sequence names to sequences.
	Catalog map[string]BaseSequence

	// PhaseOverride is the tagged variant of edits applied to a base sequence:
	// InsertAfter, InsertBefore, Replace and Delete.
	PhaseOverride interface {
		// Target returns the phase name the override edits or adds.
		Target() string
		apply(phases []Phase) ([]Phase, error)
		validate() []error
	}

	// InsertAfter adds a new phase right after Anchor.
	InsertAfter struct {
		Anchor string
		Name   string
		Fn     PhaseFunc
	}

	// InsertBefore adds a new phase right before Anchor.
	InsertBefore struct {
		Anchor string
		Name   string
		Fn     PhaseFunc
	}

	// Replace swaps the body of an existing phase.
	Replace struct {
		Name string
		Fn   PhaseFunc
	}

	// Delete removes an existing phase.
	Delete struct {
		Name string
	}

	// OverrideError reports an override that does not fit the sequence at the
	// time it is applied: a missing anchor or target, or an inserted name that
	// is already present. Reason is ErrUnknownPhase when nil.
	OverrideError struct {
		Sequence string
		Op       string
		Phase    string
		Have     []string
		Reason   error
	}
)

// Input returns the path of the input with the given label.
func (e *PhaseEnv) Input(label string) (string, bool) {
	for _, in := range e.Inputs {
		if in.Label == label {
			return in.Path, true
		}
	}
	return "", false
}

// Names returns the phase names of the sequence in order.
func (s BaseSequence) Names() []string {
	return phaseNames(s.Phases)
}

// Derive applies overrides in declaration order to a copy of the base phases.
// The base sequence is never modified.
func (s BaseSequence) Derive(overrides []PhaseOverride) ([]Phase, error) {
	phases := slices.Clone(s.Phases)
	for _, o := range overrides {
		next, err := o.apply(phases)
		if err != nil {
			var oe *OverrideError
			if errors.As(err, &oe) {
				oe.Sequence = s.Name
			}
			return nil, err
		}
		phases = next
	}
	return phases, nil
}

// Names returns the sorted base sequence names of the catalog.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Target returns the inserted phase name.
func (o InsertAfter) Target() string { return o.Name }

func (o InsertAfter) apply(phases []Phase) ([]Phase, error) {
	i := indexOf(phases, o.Anchor)
	if i < 0 {
		return nil, &OverrideError{Op: "insert-after", Phase: o.Anchor, Have: phaseNames(phases)}
	}
	if indexOf(phases, o.Name) >= 0 {
		return nil, &OverrideError{Op: "insert-after", Phase: o.Name, Have: phaseNames(phases), Reason: ErrDuplicatePhase}
	}
	return slices.Insert(phases, i+1, Phase{Name: o.Name, Fn: o.Fn}), nil
}

func (o InsertAfter) validate() []error {
	return validateInsert("insert-after", o.Anchor, o.Name, o.Fn)
}

// Target returns the inserted phase name.
func (o InsertBefore) Target() string { return o.Name }

func (o InsertBefore) apply(phases []Phase) ([]Phase, error) {
	i := indexOf(phases, o.Anchor)
	if i < 0 {
		return nil, &OverrideError{Op: "insert-before", Phase: o.Anchor, Have: phaseNames(phases)}
	}
	if indexOf(phases, o.Name) >= 0 {
		return nil, &OverrideError{Op: "insert-before", Phase: o.Name, Have: phaseNames(phases), Reason: ErrDuplicatePhase}
	}
	return slices.Insert(phases, i, Phase{Name: o.Name, Fn: o.Fn}), nil
}

func (o InsertBefore) validate() []error {
	return validateInsert("insert-before", o.Anchor, o.Name, o.Fn)
}

// Target returns the replaced phase name.
func (o Replace) Target() string { return o.Name }

func (o Replace) apply(phases []Phase) ([]Phase, error) {
	i := indexOf(phases, o.Name)
	if i < 0 {
		return nil, &OverrideError{Op: "replace", Phase: o.Name, Have: phaseNames(phases)}
	}
	out := slices.Clone(phases)
	out[i] = Phase{Name: o.Name, Fn: o.Fn}
	return out, nil
}

func (o Replace) validate() []error {
	var errs []error
	if strings.TrimSpace(o.Name) == "" {
		errs = append(errs, fmt.Errorf("replace: phase name must not be empty"))
	}
	if o.Fn == nil {
		errs = append(errs, fmt.Errorf("replace %q: phase function must not be nil", o.Name))
	}
	return errs
}

// Target returns the deleted phase name.
func (o Delete) Target() string { return o.Name }

func (o Delete) apply(phases []Phase) ([]Phase, error) {
	i := indexOf(phases, o.Name)
	if i < 0 {
		return nil, &OverrideError{Op: "delete", Phase: o.Name, Have: phaseNames(phases)}
	}
	return slices.Delete(slices.Clone(phases), i, i+1), nil
}

func (o Delete) validate() []error {
	if strings.TrimSpace(o.Name) == "" {
		return []error{fmt.Errorf("delete: phase name must not be empty")}
	}
	return nil
}

// Error implements the error interface for OverrideError.
func (e *OverrideError) Error() string {
	problem := "no such phase"
	if errors.Is(e.Unwrap(), ErrDuplicatePhase) {
		problem = "phase already exists"
	}
	return fmt.Sprintf("%s %q: %s in %q sequence (have: %s)",
		e.Op, e.Phase, problem, e.Sequence, strings.Join(e.Have, ", "))
}

// Unwrap returns the Reason sentinel for errors.Is() compatibility.
func (e *OverrideError) Unwrap() error {
	if e.Reason == nil {
		return ErrUnknownPhase
	}
	return e.Reason
}

func validateInsert(op, anchor, name string, fn PhaseFunc) []error {
	var errs []error
	if strings.TrimSpace(anchor) == "" {
		errs = append(errs, fmt.Errorf("%s: anchor must not be empty", op))
	}
	if strings.TrimSpace(name) == "" {
		errs = append(errs, fmt.Errorf("%s %q: phase name must not be empty", op, anchor))
	}
	if fn == nil {
		errs = append(errs, fmt.Errorf("%s %q: phase function must not be nil", op, name))
	}
	return errs
}

func indexOf(phases []Phase, name string) int {
	return slices.IndexFunc(phases, func(p Phase) bool { return p.Name == name })
}

func phaseNames(phases []Phase) []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.Name
	}
	return names
}
