// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type recorder struct {
	mu  sync.Mutex
	ran []string
}

func (r *recorder) phase(name string, err error) recipe.PhaseFunc {
	return func(_ context.Context, env *recipe.PhaseEnv) error {
		r.mu.Lock()
		r.ran = append(r.ran, name)
		r.mu.Unlock()
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(env.StagingDir, name+".done"), []byte(name), 0o644)
	}
}

func testSequence(rec *recorder, failAt string, cause error) recipe.Catalog {
	var phases []recipe.Phase
	for _, name := range []string{"unpack", "configure", "build", "install"} {
		var err error
		if name == failAt {
			err = cause
		}
		phases = append(phases, recipe.Phase{Name: name, Fn: rec.phase(name, err)})
	}
	return recipe.Catalog{"test": {Name: "test", Phases: phases}}
}

func testRecipe(t *testing.T, overrides ...recipe.PhaseOverride) *recipe.Recipe {
	t.Helper()
	r, err := recipe.New(recipe.Definition{
		Name: "hello", Version: "2.12", BuildSystem: "test", Phases: overrides,
		Params: map[string]string{"greeting": "hi"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names
}

func TestExecutor_RunsPhasesInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	work := t.TempDir()
	exec, err := NewExecutor(testSequence(rec, "", nil), work)
	if err != nil {
		t.Fatal(err)
	}

	r := testRecipe(t, recipe.InsertAfter{Anchor: "unpack", Name: "patch-assets", Fn: rec.phase("patch-assets", nil)})
	staging, err := exec.Run(t.Context(), r, "", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	t.Cleanup(func() { _ = staging.Discard() })

	want := []string{"unpack", "patch-assets", "configure", "build", "install"}
	if !slices.Equal(rec.ran, want) {
		t.Errorf("ran %v, want %v", rec.ran, want)
	}
	if !slices.Equal(staging.Phases, want) {
		t.Errorf("Staging.Phases = %v, want %v", staging.Phases, want)
	}
	if !strings.HasPrefix(filepath.Base(staging.Dir), "hello-2.12-") || staging.BuildID == "" {
		t.Errorf("unexpected staging %+v", staging)
	}
	if !strings.HasSuffix(staging.Dir, staging.BuildID) {
		t.Errorf("staging dir %q does not carry build id %q", staging.Dir, staging.BuildID)
	}
	if _, err := os.Stat(filepath.Join(staging.Dir, "install.done")); err != nil {
		t.Errorf("install phase output missing: %v", err)
	}
}

func TestExecutor_FailureDiscardsStaging(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	work := t.TempDir()
	boom := errors.New("make: *** [all] Error 2")
	exec, err := NewExecutor(testSequence(rec, "build", boom), work)
	if err != nil {
		t.Fatal(err)
	}

	staging, err := exec.Run(t.Context(), testRecipe(t), "", nil)
	if staging != nil {
		t.Errorf("Run() returned staging %+v on failure", staging)
	}

	var pe *PhaseError
	if !errors.As(err, &pe) {
		t.Fatalf("Run() error = %v, want *PhaseError", err)
	}
	if pe.Phase != "build" || pe.Recipe.String() != "hello@2.12" {
		t.Errorf("PhaseError = %+v", pe)
	}
	if !errors.Is(err, ErrPhaseFailed) || !errors.Is(err, boom) {
		t.Errorf("error %v should match ErrPhaseFailed and its cause", err)
	}
	if !slices.Equal(rec.ran, []string{"unpack", "configure", "build"}) {
		t.Errorf("ran %v, want phases up to build only", rec.ran)
	}
	if left := entries(t, work); len(left) != 0 {
		t.Errorf("work dir not empty after failure: %v", left)
	}
}

func TestExecutor_CancellationTearsDownOnlyThisBuild(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	ctx, cancel := context.WithCancel(t.Context())
	catalog := recipe.Catalog{"test": {Name: "test", Phases: []recipe.Phase{
		{Name: "unpack", Fn: func(context.Context, *recipe.PhaseEnv) error { cancel(); return nil }},
		{Name: "build", Fn: func(context.Context, *recipe.PhaseEnv) error {
			t.Error("build ran after cancellation")
			return nil
		}},
	}}}
	exec, err := NewExecutor(catalog, work)
	if err != nil {
		t.Fatal(err)
	}

	sibling := filepath.Join(work, "other-1-keep")
	if err := os.Mkdir(sibling, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err = exec.Run(ctx, testRecipe(t), "", nil)
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrPhaseFailed) {
		t.Fatalf("Run() error = %v, want cancelled phase error", err)
	}
	if left := entries(t, work); !slices.Equal(left, []string{"other-1-keep"}) {
		t.Errorf("work dir = %v, want only the sibling build", left)
	}
}

func TestExecutor_ConcurrentRunsAreIsolated(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	catalog := recipe.Catalog{"test": {Name: "test", Phases: []recipe.Phase{
		{Name: "build", Fn: func(_ context.Context, env *recipe.PhaseEnv) error {
			return os.WriteFile(filepath.Join(env.StagingDir, "id"), []byte(env.BuildID), 0o644)
		}},
	}}}
	exec, err := NewExecutor(catalog, work)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]*Staging, 8)
	for i := range results {
		wg.Go(func() {
			s, err := exec.Run(t.Context(), testRecipe(t), "", nil)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = s
		})
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, s := range results {
		if s == nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, "id"))
		if err != nil || string(data) != s.BuildID {
			t.Errorf("staging %s holds %q, want its own build id", s.Dir, data)
		}
		if seen[s.Dir] {
			t.Errorf("staging dir %s reused", s.Dir)
		}
		seen[s.Dir] = true
	}
}

func TestExecutor_PhaseEnv(t *testing.T) {
	t.Parallel()

	var got *recipe.PhaseEnv
	catalog := recipe.Catalog{"test": {Name: "test", Phases: []recipe.Phase{
		{Name: "build", Fn: func(_ context.Context, env *recipe.PhaseEnv) error { got = env; return nil }},
	}}}
	exec, err := NewExecutor(catalog, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	inputs := []recipe.ResolvedInput{{Label: "gcc", Path: "/store/gcc-13"}}
	if _, err := exec.Run(t.Context(), testRecipe(t), "/cache/src.tar", inputs); err != nil {
		t.Fatal(err)
	}
	if got.SourcePath != "/cache/src.tar" || got.Params["greeting"] != "hi" || got.Logger == nil {
		t.Errorf("unexpected env %+v", got)
	}
	if p, ok := got.Input("gcc"); !ok || p != "/store/gcc-13" {
		t.Errorf("Input(gcc) = (%q, %v)", p, ok)
	}
}

func TestExecutor_UnknownBuildSystem(t *testing.T) {
	t.Parallel()

	exec, err := NewExecutor(recipe.Catalog{}, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = exec.Run(t.Context(), testRecipe(t), "", nil)
	var pe *PhaseError
	if !errors.As(err, &pe) || pe.Phase != "derive" {
		t.Fatalf("Run() error = %v, want derive PhaseError", err)
	}
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	cat := DefaultCatalog(nil)
	want := map[string][]string{
		SequenceGNU:     {"unpack", "patch", "configure", "build", "check", "install"},
		SequenceBinary:  {"unpack", "patch", "install"},
		SequenceCopy:    {"unpack", "install"},
		SequenceTrivial: {"build"},
	}
	if !slices.Equal(cat.Names(), []string{"binary", "copy", "gnu", "trivial"}) {
		t.Errorf("Names() = %v", cat.Names())
	}
	for name, phases := range want {
		if got := cat[name].Names(); !slices.Equal(got, phases) {
			t.Errorf("%s = %v, want %v", name, got, phases)
		}
	}
}

func TestDefaultCatalog_GNUGuardsAreNoOpsOnPlainTree(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "hello-2.12", "doc"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "hello-2.12", "doc", "README"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	exec, err := NewExecutor(DefaultCatalog(nil), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := recipe.MustNew(recipe.Definition{Name: "hello", Version: "2.12", BuildSystem: SequenceGNU})
	staging, err := exec.Run(t.Context(), r, src, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	t.Cleanup(func() { _ = staging.Discard() })

	// Directory sources are copied verbatim; stripping applies to archives only.
	if _, err := os.Stat(filepath.Join(staging.Dir, "hello-2.12", "doc", "README")); err != nil {
		t.Errorf("source tree not copied: %v", err)
	}
}
