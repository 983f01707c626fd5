// Package engine implements the headkit resolution pipeline.
//
// A Head owns an entry store and a hook registry. Callers push entries, a
// renderer asks for a pass, and the pass turns the live entries into one
// frozen, ordered tag list plus a hash the renderer uses to skip redundant
// work.
//
// ARCHITECTURE:
//
// Pass stages (each a strict barrier: stage N+1 starts once every tag has
// left stage N):
//  1. Snapshot the store; resolve every entry's deferred values concurrently;
//     fire entries:resolve.
//  2. Extract candidates per entry in field order; normalise each into a tag;
//     fire tag:normalise; compute content hashes.
//  3. Deduplicate by dedupe identity (later position wins, or merges).
//  4. Sanitize; fire tag:resolved.
//  5. Sort by weight, ties by position.
//  6. Fire tags:resolve and tags:afterResolve; freeze the list and hash it.
//
// Built-in plugins run first in their hooks: template params and the title
// template in tags:resolve, the hydration state payload (server passes only)
// in tags:afterResolve.
//
// CRITICAL PATTERNS:
//
// Failure isolation:
// A failing getter, promise, transform, normaliser or tag hook drops only the
// offending entry's tags for that pass. The failure is reported as a
// Diagnostic and logged; the pass carries on. Only the caller's context
// aborts a pass.
//
// Determinism:
// Tag order depends only on (priority, tag class, position). Position is
// (entry id, field index), so order never depends on which deferred value
// settled first.
//
// Isolation between passes:
// Each pass works on clones taken from the store under its lock. Concurrent
// passes for the same store generation and render context are collapsed into
// one.
package engine
