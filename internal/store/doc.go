// Package store provides SQLite-backed persistence for resolved head passes.
//
// A server resolves the head once per request; the store keeps the last pass
// per route key so the next request (or a client bootstrapping from the
// rendered document) can seed the hydration reconciler without resolving
// again.
//
// The store keeps two tables:
//   - snapshots: the latest pass per route (hash, tag list, state blob)
//   - pass_log: every distinct pass hash ever saved for a route
//
// # Critical Patterns
//
// Logical time: ordering uses the seq column, a per-store counter assigned on
// write. Wall-clock timestamps are never stored.
//
// Hash-level idempotency: UNIQUE(route, hash) on pass_log. Saving the same
// pass twice appends nothing.
//
// Deterministic reads: every multi-row query orders by seq, then route with
// COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
