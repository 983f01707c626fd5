// Package hydrate reconciles server-rendered output with client passes.
//
// Every resolution pass is summarised by a pass hash over its ordered, final
// tag list. The Reconciler remembers the hash of the last render and tells the
// renderer whether a new pass changes anything. The server embeds its hash in
// a JSON state tag so the first client pass can skip the DOM entirely when
// nothing changed.
package hydrate

import (
	"fmt"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/roach88/headkit/internal/ir"
)

// AttrPrefix prefixes per-tag hydration attributes.
const AttrPrefix = "data-h-"

// HydrationKey returns the hydration attribute name for a keyed tag. It is
// stable across server and client passes for the same kind and key.
func HydrationKey(kind, key string) string {
	return AttrPrefix + ir.KeyHash(kind, key)[:7]
}

type passTuple struct {
	tag      string
	identity string
	content  string
}

// PassHash hashes the ordered (tag, identity, content) tuples of a final tag
// list. The state tag itself is excluded so the hash it carries is the hash
// of the list it sits in.
func PassHash(tags []ir.Tag) (digest.Digest, error) {
	tuples := make([]any, 0, len(tags))
	for i, t := range tags {
		if IsStateTag(t) {
			continue
		}
		content, err := ir.TagContentHash(t)
		if err != nil {
			return "", fmt.Errorf("tag %d (%s): %w", i, t.Tag, err)
		}
		identity := t.DedupeKey
		if identity == "" {
			identity = content
		}
		tuples = append(tuples, map[string]any{
			"tag":      t.Tag,
			"identity": identity,
			"content":  content,
		})
	}

	canonical, err := ir.MarshalCanonical(tuples)
	if err != nil {
		return "", fmt.Errorf("PassHash: %w", err)
	}
	return digest.NewDigestFromBytes(digest.SHA256, ir.HashWithDomain(ir.DomainPass, canonical)), nil
}

// Reconciler decides whether a pass needs rendering.
//
// Thread-safety: safe for concurrent use.
type Reconciler struct {
	mu   sync.Mutex
	last digest.Digest
}

// NewReconciler creates a reconciler seeded with a previously rendered hash.
// An empty seed means nothing has been rendered yet.
func NewReconciler(seed digest.Digest) *Reconciler {
	return &Reconciler{last: seed}
}

// Observe records h and reports whether it differs from the last recorded
// hash, that is whether the renderer must touch the document.
func (r *Reconciler) Observe(h digest.Digest) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == r.last {
		return false
	}
	r.last = h
	return true
}

// Seed replaces the recorded hash without rendering, as when a client adopts
// the server's state blob.
func (r *Reconciler) Seed(h digest.Digest) {
	r.mu.Lock()
	r.last = h
	r.mu.Unlock()
}

// Last returns the recorded hash.
func (r *Reconciler) Last() digest.Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
