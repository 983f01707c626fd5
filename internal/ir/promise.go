package ir

import (
	"context"
	"fmt"
	"sync"
)

// Promise is an asynchronous computation producing a Value.
//
// The computation starts on the first Await (or Start) and settles exactly
// once; later awaits observe the cached result. A caller giving up on Await
// (context cancelled) does not cancel the computation itself, so a later
// resolution pass can still pick up the settled value.
//
// Thread-safety: Promise is safe for concurrent use.
type Promise struct {
	fn    func(ctx context.Context) (Value, error)
	once  sync.Once
	done  chan struct{}
	val   Value
	err   error
	label string
}

func (*Promise) value() {}

// NewPromise creates a promise that runs fn on first use.
func NewPromise(fn func(ctx context.Context) (Value, error)) *Promise {
	return &Promise{fn: fn, done: make(chan struct{})}
}

// NamedPromise is NewPromise with a label used in error messages.
func NamedPromise(label string, fn func(ctx context.Context) (Value, error)) *Promise {
	p := NewPromise(fn)
	p.label = label
	return p
}

// Settled creates an already-settled promise.
func Settled(v Value) *Promise {
	p := &Promise{done: make(chan struct{}), val: v}
	p.once.Do(func() {})
	close(p.done)
	return p
}

// Start begins the computation if it has not started yet. It never blocks.
func (p *Promise) Start(ctx context.Context) {
	p.once.Do(func() {
		go func() {
			defer close(p.done)
			defer func() {
				if r := recover(); r != nil {
					p.err = fmt.Errorf("promise %s panicked: %v", p.name(), r)
				}
			}()
			p.val, p.err = p.fn(context.WithoutCancel(ctx))
		}()
	})
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise) Await(ctx context.Context) (Value, error) {
	p.Start(ctx)
	select {
	case <-p.done:
		if p.err != nil {
			return nil, p.err
		}
		if p.val == nil {
			return Null{}, nil
		}
		return p.val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done reports whether the promise has settled.
func (p *Promise) Done() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Promise) name() string {
	if p.label == "" {
		return "(anonymous)"
	}
	return p.label
}

// Resolve deep-resolves v: getters are invoked, promises awaited, and arrays and
// objects rebuilt so the result shares no mutable structure with v.
//
// Every promise reachable without invoking a getter is started before the
// first await, so independent promises inside one value settle concurrently.
func Resolve(ctx context.Context, v Value) (Value, error) {
	prime(ctx, v)
	return resolve(ctx, v)
}

// ResolveObject is Resolve for a top-level entry input.
func ResolveObject(ctx context.Context, obj Object) (Object, error) {
	out, err := Resolve(ctx, obj)
	if err != nil {
		return nil, err
	}
	return out.(Object), nil
}

func prime(ctx context.Context, v Value) {
	switch val := v.(type) {
	case *Promise:
		val.Start(ctx)
	case Array:
		for _, elem := range val {
			prime(ctx, elem)
		}
	case Object:
		for _, elem := range val {
			prime(ctx, elem)
		}
	}
}

func resolve(ctx context.Context, v Value) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Getter:
		if val == nil {
			return Null{}, nil
		}
		res, err := callGetter(val)
		if err != nil {
			return nil, err
		}
		return Resolve(ctx, res)
	case *Promise:
		res, err := val.Await(ctx)
		if err != nil {
			return nil, err
		}
		return Resolve(ctx, res)
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			r, err := resolve(ctx, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	case Object:
		out := make(Object, len(val))
		for _, k := range val.SortedKeys() {
			r, err := resolve(ctx, val[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func callGetter(g Getter) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("getter panicked: %v", r)
		}
	}()
	return g(), nil
}
