package engine

import "context"

type headKey struct{}

// WithHead returns a context carrying h, for call sites that prefer threading
// an ambient instance over passing it explicitly.
func WithHead(ctx context.Context, h *Head) context.Context {
	return context.WithValue(ctx, headKey{}, h)
}

// FromContext returns the Head carried by ctx, if any.
func FromContext(ctx context.Context) (*Head, bool) {
	h, ok := ctx.Value(headKey{}).(*Head)
	return h, ok && h != nil
}
