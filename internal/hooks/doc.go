// Package hooks implements the hook registry the resolution pipeline and its
// plugins communicate through.
//
// Every fixed hook name owns a typed Slot: an ordered list of handlers that
// receive a shared, mutable context object. Handlers run sequentially in
// registration order; a handler that returns an error (or panics) produces a
// *HookError and the remaining handlers still run.
//
// Names outside the fixed set are accepted as registration targets and only
// fire through EmitNamed, so plugins written against newer hook names load
// without error on older engines.
package hooks
