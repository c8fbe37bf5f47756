// Package version computes and parses the opaque version tokens the
// Resource Provider uses for optimistic concurrency. A version
// is a deterministic digest over the canonical byte serialization of a
// resource, excluding meta.version itself, so that persisting a version
// never changes the bytes that produced it.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/scimware/scim-server/pkg/errors"
)

// Raw is the bare opaque token form (no quotes, no weak-ETag prefix).
type Raw string

// Compute returns the raw version token for a resource document. meta.version
// is excluded from the hash input so that storing the computed token never
// perturbs the bytes that produced it; meta.lastModified and every other
// field participate in the hash, so any attribute change bumps the version.
func Compute(resource map[string]interface{}) (Raw, error) {
	canonical, err := Canonicalize(resource)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)

	return Raw(hex.EncodeToString(sum[:])), nil
}

// Canonicalize renders a resource to a stable byte form: object keys sorted
// lexicographically at every level, no insignificant whitespace, and
// meta.version zeroed out of the hash input. Canonicalize is idempotent:
// canonicalizing an already-canonical document reproduces the same bytes.
func Canonicalize(resource map[string]interface{}) ([]byte, error) {
	stripped := stripVersion(resource)

	node, err := canonicalValue(stripped)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	writeCanonical(&b, node)

	return []byte(b.String()), nil
}

// stripVersion returns a shallow copy of resource with meta.version removed,
// without mutating the caller's map.
func stripVersion(resource map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(resource))
	for k, v := range resource {
		out[k] = v
	}

	meta, ok := out["meta"].(map[string]interface{})
	if !ok {
		return out
	}

	metaCopy := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		if k == "version" {
			continue
		}

		metaCopy[k] = v
	}

	out["meta"] = metaCopy

	return out
}

// canonicalValue round-trips through encoding/json to normalize number
// representation (JSON numbers decode to float64, and float64 re-encodes
// in Go's canonical shortest form), then returns the decoded tree.
func canonicalValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing resource: %w", err)
	}

	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("canonicalizing resource: %w", err)
	}

	return decoded, nil
}

// writeCanonical serializes a decoded JSON tree with object keys sorted and
// no insignificant whitespace.
func writeCanonical(b *strings.Builder, v interface{}) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		b.WriteByte('{')

		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}

			keyJSON, _ := json.Marshal(k)
			b.Write(keyJSON)
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}

		b.WriteByte('}')
	case []interface{}:
		b.WriteByte('[')

		for i, item := range t {
			if i > 0 {
				b.WriteByte(',')
			}

			writeCanonical(b, item)
		}

		b.WriteByte(']')
	default:
		data, _ := json.Marshal(t)
		b.Write(data)
	}
}

// EmitHTTP renders a raw token as a weak ETag header value, the only form
// this engine ever emits.
func EmitHTTP(raw Raw) string {
	return fmt.Sprintf(`W/"%s"`, raw)
}

// ParseHTTP accepts either a strong quoted token (`"<raw>"`) or a weak one
// (`W/"<raw>"`) and returns the bare raw token. Both forms compare equal by
// opaque value once parsed; malformed input (no quotes, unclosed quotes, an
// empty token) is rejected.
func ParseHTTP(s string) (Raw, error) {
	body := s

	if strings.HasPrefix(body, "W/") {
		body = body[len("W/"):]
	}

	if len(body) < 2 || body[0] != '"' || body[len(body)-1] != '"' {
		return "", errors.NewValidationError("malformed ETag %q", s)
	}

	raw := body[1 : len(body)-1]
	if raw == "" {
		return "", errors.NewValidationError("empty ETag %q", s)
	}

	if strings.ContainsAny(raw, `"`) {
		return "", errors.NewValidationError("malformed ETag %q", s)
	}

	return Raw(raw), nil
}

// Equal compares two raw tokens by opaque value, the only comparison the
// protocol ever performs; strong and weak ETag forms are indistinguishable
// once parsed.
func Equal(a, b Raw) bool {
	return a == b
}
