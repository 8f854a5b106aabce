// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// fakeProducer records every Produce call and returns "/store/<name>-<version>".
type fakeProducer struct {
	mu    sync.Mutex
	calls map[recipe.Identity]int
	fail  map[string]error
	delay time.Duration
	seen  map[recipe.Identity]Inputs
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{
		calls: map[recipe.Identity]int{},
		fail:  map[string]error{},
		seen:  map[recipe.Identity]Inputs{},
	}
}

func (p *fakeProducer) Produce(ctx context.Context, r *recipe.Recipe, inputs Inputs) (string, error) {
	p.mu.Lock()
	p.calls[r.Identity()]++
	p.seen[r.Identity()] = inputs
	err := p.fail[r.Name()]
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return filepath.Join("/store", r.Identity().Dirname()), nil
}

func (p *fakeProducer) count(name, version string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[recipe.Identity{Name: name, Version: version}]
}

func (p *fakeProducer) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// graph builds a registry where every recipe is version "1" and deps maps a
// recipe name to its input names.
func graph(t *testing.T, deps map[string][]string) *recipe.Registry {
	t.Helper()
	reg := recipe.NewRegistry(nil)
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		var inputs []recipe.InputRef
		for _, d := range deps[name] {
			inputs = append(inputs, recipe.InputRef{Name: d})
		}
		r, err := recipe.New(recipe.Definition{Name: name, Version: "1", BuildSystem: "trivial", Inputs: inputs})
		if err != nil {
			t.Fatalf("recipe.New(%s) error = %v", name, err)
		}
		if err := reg.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func lookup(t *testing.T, reg *recipe.Registry, name string) *recipe.Recipe {
	t.Helper()
	r, err := reg.Lookup(name, "")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func diamond(t *testing.T) *recipe.Registry {
	return graph(t, map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
		"d": nil,
	})
}

func TestPlan_DependenciesFirst(t *testing.T) {
	t.Parallel()

	reg := diamond(t)
	res := New(reg, newFakeProducer())
	plan, err := res.Plan(lookup(t, reg, "a"))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	var got []string
	for _, id := range plan {
		got = append(got, id.Name)
	}
	if want := []string{"d", "c", "b", "a"}; !slices.Equal(got, want) {
		t.Errorf("Plan() = %v, want %v", got, want)
	}
}

func TestRealize_DiamondBuildsSharedInputOnce(t *testing.T) {
	t.Parallel()

	reg := diamond(t)
	prod := newFakeProducer()
	res := New(reg, prod)

	path, err := res.Realize(t.Context(), lookup(t, reg, "a"))
	if err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	if path != filepath.Join("/store", "a-1") {
		t.Errorf("Realize() = %q", path)
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		if n := prod.count(name, "1"); n != 1 {
			t.Errorf("%s produced %d times, want 1", name, n)
		}
	}

	got := prod.seen[recipe.Identity{Name: "a", Version: "1"}]
	want := Inputs{
		{Label: "b", Path: filepath.Join("/store", "b-1")},
		{Label: "c", Path: filepath.Join("/store", "c-1")},
	}
	if !slices.Equal(got, want) {
		t.Errorf("inputs of a = %v, want %v", got, want)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	reg := diamond(t)
	a := lookup(t, reg, "a")

	first, err := New(reg, newFakeProducer(), WithJobs(8)).Resolve(t.Context(), a)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for range 5 {
		again, err := New(reg, newFakeProducer(), WithJobs(8)).Resolve(t.Context(), a)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !slices.Equal(first, again) {
			t.Fatalf("Resolve() not deterministic: %v vs %v", first, again)
		}
	}
	if m := first.Map(); m["b"] != filepath.Join("/store", "b-1") || len(m) != 2 {
		t.Errorf("Map() = %v", m)
	}
}

func TestResolve_DoesNotBuildRecipeItself(t *testing.T) {
	t.Parallel()

	reg := diamond(t)
	prod := newFakeProducer()
	if _, err := New(reg, prod).Resolve(t.Context(), lookup(t, reg, "a")); err != nil {
		t.Fatal(err)
	}
	if prod.count("a", "1") != 0 {
		t.Error("Resolve() produced the recipe itself")
	}
	if prod.total() != 3 {
		t.Errorf("Produce called %d times, want 3", prod.total())
	}
}

func TestRealize_ConcurrentRequestsShareOneBuild(t *testing.T) {
	t.Parallel()

	reg := graph(t, map[string][]string{"app": {"lib"}, "lib": nil})
	prod := newFakeProducer()
	prod.delay = 50 * time.Millisecond
	res := New(reg, prod)
	app := lookup(t, reg, "app")

	var wg sync.WaitGroup
	var failures atomic.Int32
	for range 16 {
		wg.Go(func() {
			if _, err := res.Realize(t.Context(), app); err != nil {
				failures.Add(1)
			}
		})
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d Realize() calls failed", failures.Load())
	}
	if n := prod.count("app", "1"); n != 1 {
		t.Errorf("app produced %d times, want exactly 1", n)
	}
	if n := prod.count("lib", "1"); n != 1 {
		t.Errorf("lib produced %d times, want exactly 1", n)
	}
}

func TestRealize_Cycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		deps map[string][]string
		root string
		want []string
	}{
		{"two", map[string][]string{"a": {"b"}, "b": {"a"}}, "a", []string{"a", "b", "a"}},
		{"self", map[string][]string{"a": {"a"}}, "a", []string{"a", "a"}},
		{"behind prefix", map[string][]string{
			"root": {"x"}, "x": {"y"}, "y": {"z"}, "z": {"x"},
		}, "root", []string{"x", "y", "z", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := graph(t, tt.deps)
			prod := newFakeProducer()
			_, err := New(reg, prod).Realize(t.Context(), lookup(t, reg, tt.root))
			if !errors.Is(err, ErrCyclicDependency) {
				t.Fatalf("Realize() error = %v, want ErrCyclicDependency", err)
			}
			var ce *CyclicDependencyError
			if !errors.As(err, &ce) {
				t.Fatalf("error is %T, want *CyclicDependencyError", err)
			}
			var got []string
			for _, id := range ce.Cycle {
				got = append(got, id.Name)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Cycle = %v, want %v", got, tt.want)
			}
			if prod.total() != 0 {
				t.Errorf("Produce called %d times before cycle was reported", prod.total())
			}
		})
	}
}

func TestCyclicDependencyError_Message(t *testing.T) {
	t.Parallel()

	err := &CyclicDependencyError{Cycle: []recipe.Identity{
		{Name: "a", Version: "1"}, {Name: "b", Version: "1"}, {Name: "a", Version: "1"},
	}}
	if got, want := err.Error(), "cyclic dependency: a@1 -> b@1 -> a@1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRealize_UnknownInput(t *testing.T) {
	t.Parallel()

	reg := graph(t, map[string][]string{"app": {"missing"}})
	prod := newFakeProducer()
	_, err := New(reg, prod).Realize(t.Context(), lookup(t, reg, "app"))

	var ue *UnresolvedInputError
	if !errors.As(err, &ue) {
		t.Fatalf("Realize() error = %v, want *UnresolvedInputError", err)
	}
	if ue.Recipe.Name != "app" || ue.Input.Name != "missing" {
		t.Errorf("UnresolvedInputError = %+v", ue)
	}
	if !errors.Is(err, ErrUnresolvedInput) || !errors.Is(err, recipe.ErrRecipeNotFound) {
		t.Errorf("error %v should match ErrUnresolvedInput and ErrRecipeNotFound", err)
	}
	if prod.total() != 0 {
		t.Errorf("Produce called %d times", prod.total())
	}
}

func TestRealize_FailedInputAbortsAndIsNotCached(t *testing.T) {
	t.Parallel()

	reg := graph(t, map[string][]string{"app": {"lib"}, "lib": nil})
	prod := newFakeProducer()
	boom := errors.New("make: *** [all] Error 2")
	prod.fail["lib"] = boom
	res := New(reg, prod)
	app := lookup(t, reg, "app")

	_, err := res.Realize(t.Context(), app)
	if !errors.Is(err, ErrUnresolvedInput) || !errors.Is(err, boom) {
		t.Fatalf("Realize() error = %v, want unresolved input wrapping the build failure", err)
	}
	if prod.count("app", "1") != 0 {
		t.Error("app was produced although its input failed")
	}
	if _, ok := res.Built(recipe.Identity{Name: "lib", Version: "1"}); ok {
		t.Error("failed build was memoized")
	}

	prod.mu.Lock()
	delete(prod.fail, "lib")
	prod.mu.Unlock()

	if _, err := res.Realize(t.Context(), app); err != nil {
		t.Fatalf("retry Realize() error = %v", err)
	}
	if prod.count("lib", "1") != 2 {
		t.Errorf("lib produced %d times, want 2 (failure + retry)", prod.count("lib", "1"))
	}
}

func TestRealize_LatestVersionSelected(t *testing.T) {
	t.Parallel()

	reg := recipe.NewRegistry(nil)
	for _, v := range []string{"1.2.0", "1.10.0"} {
		if err := reg.Add(recipe.MustNew(recipe.Definition{Name: "lib", Version: v, BuildSystem: "trivial"})); err != nil {
			t.Fatal(err)
		}
	}
	app := recipe.MustNew(recipe.Definition{
		Name: "app", Version: "1", BuildSystem: "trivial",
		Inputs: []recipe.InputRef{{Name: "lib"}, {Label: "old", Name: "lib", Version: "1.2.0"}},
	})
	if err := reg.Add(app); err != nil {
		t.Fatal(err)
	}

	inputs, err := New(reg, newFakeProducer()).Resolve(t.Context(), app)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p, _ := inputs.Lookup("lib"); p != filepath.Join("/store", "lib-1.10.0") {
		t.Errorf("lib resolved to %q, want newest", p)
	}
	if p, _ := inputs.Lookup("old"); p != filepath.Join("/store", "lib-1.2.0") {
		t.Errorf("old resolved to %q, want pinned", p)
	}
}

func TestRealize_Prebuilt(t *testing.T) {
	t.Parallel()

	reg := graph(t, map[string][]string{"app": {"lib"}, "lib": nil})
	prod := newFakeProducer()
	res := New(reg, prod, WithPrebuilt(recipe.Identity{Name: "lib", Version: "1"}, "/opt/lib"))

	inputs, err := res.Resolve(t.Context(), lookup(t, reg, "app"))
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := inputs.Lookup("lib"); p != "/opt/lib" {
		t.Errorf("lib = %q, want prebuilt path", p)
	}
	if prod.total() != 0 {
		t.Errorf("Produce called %d times", prod.total())
	}
}

func TestRealize_Cancelled(t *testing.T) {
	t.Parallel()

	reg := graph(t, map[string][]string{"app": nil})
	prod := newFakeProducer()
	prod.delay = time.Minute
	res := New(reg, prod)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := res.Realize(ctx, lookup(t, reg, "app"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Realize() error = %v, want deadline exceeded", err)
	}
	if _, ok := res.Built(recipe.Identity{Name: "app", Version: "1"}); ok {
		t.Error("cancelled build was memoized")
	}
}

func TestRealize_CancelledWaiterDoesNotFailOthers(t *testing.T) {
	t.Parallel()

	reg := graph(t, map[string][]string{"app": {"lib"}, "lib": nil})
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var calls atomic.Int32
	res := New(reg, ProducerFunc(func(ctx context.Context, r *recipe.Recipe, _ Inputs) (string, error) {
		if r.Name() == "lib" {
			calls.Add(1)
			started <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return filepath.Join("/store", r.Identity().Dirname()), nil
	}))
	lib := recipe.Identity{Name: "lib", Version: "1"}

	firstCtx, cancelFirst := context.WithCancel(t.Context())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := res.Realize(firstCtx, lookup(t, reg, "lib"))
		firstErr <- err
	}()
	<-started

	second := make(chan error, 1)
	var secondPath string
	go func() {
		p, err := res.Realize(t.Context(), lookup(t, reg, "app"))
		secondPath = p
		second <- err
	}()
	// Wait until the second request has joined the shared build.
	for {
		res.mu.Lock()
		f := res.flights[lib]
		joined := f != nil && f.waiters == 2
		res.mu.Unlock()
		if joined {
			break
		}
		time.Sleep(time.Millisecond)
	}

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first Realize() error = %v, want context.Canceled", err)
	}
	close(release)

	if err := <-second; err != nil {
		t.Fatalf("second Realize() error = %v", err)
	}
	if want := filepath.Join("/store", "app-1"); secondPath != want {
		t.Errorf("second path = %q, want %q", secondPath, want)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("lib produced %d times, want 1", n)
	}
	if _, ok := res.Built(lib); !ok {
		t.Error("lib was not memoized")
	}
}

func TestRealize_AbandonedBuildRestartsForLiveCaller(t *testing.T) {
	t.Parallel()

	reg := graph(t, map[string][]string{"lib": nil})
	started := make(chan struct{}, 4)
	var calls atomic.Int32
	res := New(reg, ProducerFunc(func(ctx context.Context, r *recipe.Recipe, _ Inputs) (string, error) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-ctx.Done()
			return "", ctx.Err()
		}
		return filepath.Join("/store", r.Identity().Dirname()), nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		_, err := res.Realize(ctx, lookup(t, reg, "lib"))
		done <- err
	}()
	<-started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("first Realize() error = %v, want context.Canceled", err)
	}

	p, err := res.Realize(t.Context(), lookup(t, reg, "lib"))
	if err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	if want := filepath.Join("/store", "lib-1"); p != want {
		t.Errorf("path = %q, want %q", p, want)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("lib produced %d times, want 2", n)
	}
}

func TestProducerCallingBackIsCycleChecked(t *testing.T) {
	t.Parallel()

	reg := graph(t, map[string][]string{"app": nil})
	var res *Resolver
	res = New(reg, ProducerFunc(func(ctx context.Context, r *recipe.Recipe, _ Inputs) (string, error) {
		// Re-entering Realize for the recipe being built must not deadlock.
		_, err := res.realize(ctx, r, chainFrom(ctx))
		return "", fmt.Errorf("re-entered: %w", err)
	}))

	_, err := res.Realize(t.Context(), lookup(t, reg, "app"))
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("Realize() error = %v, want ErrCyclicDependency", err)
	}
}
