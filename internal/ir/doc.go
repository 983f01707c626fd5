// Package ir provides the value and tag types shared by every headkit package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps it the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Entry input is a sealed Value union. Deferred variants (Getter, *Promise)
//     only exist in caller input; Resolve removes them before any structural
//     typing is applied.
//   - Tag props are plain strings once a tag leaves normalisation.
//   - Ordering is logical (entry id, field index), never wall-clock.
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing.
//   - All JSON tags use snake_case
package ir
