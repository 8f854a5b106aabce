// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pkgchan/pkgchan/internal/dag"
	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// DefaultJobs is the sibling realization limit used when none is configured.
const DefaultJobs = 4

type (
	// Producer builds one recipe from its realized inputs and returns the
	// absolute path of the built artifact.
	Producer interface {
		Produce(ctx context.Context, r *recipe.Recipe, inputs Inputs) (string, error)
	}

	// ProducerFunc adapts a function to the Producer interface.
	ProducerFunc func(ctx context.Context, r *recipe.Recipe, inputs Inputs) (string, error)

	// Inputs is a realized input mapping in the recipe's declaration order.
	Inputs []recipe.ResolvedInput

	// Resolver realizes recipes and their inputs. It is safe for concurrent use.
	Resolver struct {
		registry *recipe.Registry
		producer Producer
		jobs     int
		logger   *log.Logger

		mu      sync.Mutex
		built   map[recipe.Identity]string
		flights map[recipe.Identity]*flight
		group   singleflight.Group
	}

	// flight is the context a shared build runs under. It is cancelled once
	// every caller waiting on the build has gone.
	flight struct {
		ctx     context.Context
		cancel  context.CancelFunc
		waiters int
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	chainKey struct{}
)

// Produce calls f.
func (f ProducerFunc) Produce(ctx context.Context, r *recipe.Recipe, inputs Inputs) (string, error) {
	return f(ctx, r, inputs)
}

// Map returns the inputs as a label to path map.
func (in Inputs) Map() map[string]string {
	m := make(map[string]string, len(in))
	for _, ri := range in {
		m[ri.Label] = ri.Path
	}
	return m
}

// Lookup returns the path realized for label.
func (in Inputs) Lookup(label string) (string, bool) {
	for _, ri := range in {
		if ri.Label == label {
			return ri.Path, true
		}
	}
	return "", false
}

// WithJobs bounds how many sibling inputs realize concurrently. Values below 1 mean 1.
func WithJobs(n int) Option {
	return func(r *Resolver) { r.jobs = max(n, 1) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithPrebuilt seeds the memo with an already-built identity, e.g. one found in the store.
func WithPrebuilt(id recipe.Identity, path string) Option {
	return func(r *Resolver) { r.built[id] = path }
}

// New creates a Resolver over registry that builds through producer.
func New(registry *recipe.Registry, producer Producer, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		producer: producer,
		jobs:     DefaultJobs,
		built:    make(map[recipe.Identity]string),
		flights:  make(map[recipe.Identity]*flight),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// Plan returns the build order of rec's input closure, dependencies first and
// rec last. It touches nothing and fails on unknown inputs or cycles.
func (r *Resolver) Plan(rec *recipe.Recipe) ([]recipe.Identity, error) {
	g := dag.New()
	ids := map[string]recipe.Identity{}
	var firstErr error

	var walk func(cur *recipe.Recipe)
	walk = func(cur *recipe.Recipe) {
		key := cur.Identity().String()
		if _, seen := ids[key]; seen {
			return
		}
		ids[key] = cur.Identity()
		g.AddNode(key)
		for _, in := range cur.Inputs() {
			dep, err := r.registry.Lookup(in.Name, in.Version)
			if err != nil {
				if firstErr == nil {
					firstErr = &UnresolvedInputError{Recipe: cur.Identity(), Input: in, Cause: err}
				}
				continue
			}
			// Edges point from a recipe to what it depends on, so a cycle
			// reads in "needs" order.
			g.AddEdge(key, dep.Identity().String())
			walk(dep)
		}
	}
	walk(rec)

	if cycle := g.FindCycle(); cycle != nil {
		out := make([]recipe.Identity, len(cycle))
		for i, key := range cycle {
			out[i] = ids[key]
		}
		return nil, &CyclicDependencyError{Cycle: out}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	slices.Reverse(order)
	plan := make([]recipe.Identity, len(order))
	for i, key := range order {
		plan[i] = ids[key]
	}
	return plan, nil
}

// Resolve realizes every declared input of rec and returns them in
// declaration order. It does not build rec itself.
func (r *Resolver) Resolve(ctx context.Context, rec *recipe.Recipe) (Inputs, error) {
	if _, err := r.Plan(rec); err != nil {
		return nil, err
	}
	return r.resolveInputs(ctx, rec, chainFrom(ctx))
}

// Realize returns the built artifact of rec, building it and its inputs if needed.
// Successful results are memoized; failures are not, so a later call retries.
func (r *Resolver) Realize(ctx context.Context, rec *recipe.Recipe) (string, error) {
	if _, err := r.Plan(rec); err != nil {
		return "", err
	}
	return r.realize(ctx, rec, chainFrom(ctx))
}

// Built returns the memoized artifact path of id, if it was realized.
func (r *Resolver) Built(id recipe.Identity) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.built[id]
	return p, ok
}

// Forget drops the memoized result of id so the next Realize rebuilds it.
func (r *Resolver) Forget(id recipe.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.built, id)
}

func (r *Resolver) realize(ctx context.Context, rec *recipe.Recipe, chain []recipe.Identity) (string, error) {
	id := rec.Identity()
	if i := slices.Index(chain, id); i >= 0 {
		return "", &CyclicDependencyError{Cycle: append(slices.Clone(chain[i:]), id)}
	}
	if p, ok := r.Built(id); ok {
		r.logger.Debug("input reused", "recipe", id)
		return p, nil
	}

	next := append(slices.Clone(chain), id)
	for {
		f := r.join(ctx, id)
		ch := r.group.DoChan(id.String(), func() (any, error) {
			return r.build(f.ctx, rec, next)
		})

		select {
		case <-ctx.Done():
			r.leave(id, f)
			return "", ctx.Err()
		case res := <-ch:
			r.leave(id, f)
			if errors.Is(res.Err, errAbandoned) {
				// Every earlier waiter left; start over under this caller.
				if err := ctx.Err(); err != nil {
					return "", err
				}
				r.logger.Debug("restarting abandoned build", "recipe", id)
				continue
			}
			if res.Err != nil {
				return "", res.Err
			}
			return res.Val.(string), nil
		}
	}
}

func (r *Resolver) build(ctx context.Context, rec *recipe.Recipe, chain []recipe.Identity) (string, error) {
	id := rec.Identity()
	if p, ok := r.Built(id); ok {
		return p, nil
	}
	inputs, err := r.resolveInputs(ctx, rec, chain)
	if err == nil {
		r.logger.Debug("producing", "recipe", id, "inputs", len(inputs))
		var p string
		if p, err = r.producer.Produce(withChain(ctx, chain), rec, inputs); err == nil {
			r.mu.Lock()
			r.built[id] = p
			r.mu.Unlock()
			return p, nil
		}
	}
	if ctx.Err() != nil {
		return "", errAbandoned
	}
	return "", err
}

// join registers the caller as a waiter on id's flight, creating the flight
// when none is live. The flight keeps ctx's values but not its cancellation.
func (r *Resolver) join(ctx context.Context, id recipe.Identity) *flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[id]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		r.flights[id] = f
	}
	f.waiters++
	return f
}

func (r *Resolver) leave(id recipe.Identity, f *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.waiters--; f.waiters > 0 {
		return
	}
	if r.flights[id] == f {
		delete(r.flights, id)
	}
	f.cancel()
}

func (r *Resolver) resolveInputs(ctx context.Context, rec *recipe.Recipe, chain []recipe.Identity) (Inputs, error) {
	declared := rec.Inputs()
	if len(declared) == 0 {
		return Inputs{}, nil
	}

	out := make(Inputs, len(declared))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)
	for i, in := range declared {
		g.Go(func() error {
			dep, err := r.registry.Lookup(in.Name, in.Version)
			if err != nil {
				return &UnresolvedInputError{Recipe: rec.Identity(), Input: in, Cause: err}
			}
			p, err := r.realize(gctx, dep, chain)
			if err != nil {
				var cycle *CyclicDependencyError
				if errors.As(err, &cycle) {
					return err
				}
				return &UnresolvedInputError{Recipe: rec.Identity(), Input: in, Cause: err}
			}
			out[i] = recipe.ResolvedInput{Label: in.EffectiveLabel(), Path: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// withChain records the realization chain for Producers that call back into the Resolver.
func withChain(ctx context.Context, chain []recipe.Identity) context.Context {
	return context.WithValue(ctx, chainKey{}, chain)
}

func chainFrom(ctx context.Context) []recipe.Identity {
	chain, _ := ctx.Value(chainKey{}).([]recipe.Identity)
	return chain
}
