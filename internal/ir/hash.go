package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTag  = "headkit/tag/v1"
	DomainPass = "headkit/pass/v1"
	DomainKey  = "headkit/key/v1"
)

// HashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// TagIdentity is the content-bearing view of a tag used for hashing: kind,
// caller key, props and content. Derived fields (entry id, position, dedupe
// key) are excluded so that the same logical tag hashes the same regardless
// of which entry produced it.
func TagIdentity(t Tag) map[string]any {
	props := make(map[string]any, len(t.Props))
	for k, v := range t.Props {
		props[k] = v
	}
	obj := map[string]any{
		"tag":   t.Tag,
		"props": props,
	}
	if t.Key != "" {
		obj["key"] = t.Key
	}
	if t.TextContent != "" {
		obj["text_content"] = t.TextContent
	}
	if t.InnerHTML != "" {
		obj["inner_html"] = t.InnerHTML
	}
	if t.TagPosition != "" && t.TagPosition != PositionHead {
		obj["tag_position"] = string(t.TagPosition)
	}
	return obj
}

// TagContentHash computes the content hash of a tag (hex SHA-256).
// Returns error if the tag cannot be canonically marshaled.
func TagContentHash(t Tag) (string, error) {
	canonical, err := MarshalCanonical(TagIdentity(t))
	if err != nil {
		return "", fmt.Errorf("TagContentHash: failed to marshal: %w", err)
	}
	return hex.EncodeToString(HashWithDomain(DomainTag, canonical)), nil
}

// MustTagContentHash is like TagContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTagContentHash(t Tag) string {
	h, err := TagContentHash(t)
	if err != nil {
		panic(err)
	}
	return h
}

// KeyHash hashes a caller-supplied dedupe key for a tag kind. Used to derive
// hydration attributes that stay stable across server and client passes.
func KeyHash(kind, key string) string {
	return hex.EncodeToString(HashWithDomain(DomainKey, []byte(kind+":"+key)))
}
