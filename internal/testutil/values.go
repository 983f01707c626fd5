package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/headkit/internal/ir"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Delayed returns a promise settling to v after d.
func Delayed(d time.Duration, v ir.Value) *ir.Promise {
	return ir.NamedPromise("delayed", func(ctx context.Context) (ir.Value, error) {
		select {
		case <-time.After(d):
			return v, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// Failing returns a promise rejecting with err.
func Failing(err error) *ir.Promise {
	return ir.NamedPromise("failing", func(context.Context) (ir.Value, error) {
		return nil, err
	})
}

// Stalled returns a promise that never settles, and a func releasing it with v.
func Stalled() (*ir.Promise, func(v ir.Value)) {
	release := make(chan ir.Value, 1)
	p := ir.NamedPromise("stalled", func(context.Context) (ir.Value, error) {
		return <-release, nil
	})
	return p, func(v ir.Value) { release <- v }
}

// Counting wraps v in a getter that counts its invocations.
func Counting(v ir.Value) (ir.Getter, *atomic.Int64) {
	var n atomic.Int64
	return func() ir.Value {
		n.Add(1)
		return v
	}, &n
}
