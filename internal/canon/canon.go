// Package canon implements the byte-stable canonical JSON serialization and
// content hashing that every other Cheshbon package builds on: equal
// content must always produce equal bytes, and equal bytes are what get
// hashed into every digest the core emits.
//
// The canonicalizer is implemented directly rather than by configuring
// encoding/json, because two of its rules — floats are a hard error, and
// strings are NFC-normalized before comparison — have to run on the
// recursive walk itself, not as a post-processing pass.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Error is a canonicalization failure, annotated with the JSON path of the
// offending value (e.g. "outer.field[3].value").
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Path)
}

func errAt(path, format string, args ...any) error {
	return &Error{Path: path, Message: fmt.Sprintf(format, args...)}
}

// SetValue marks a slice as a set: when canonicalized, its elements are
// sorted by the total order (type_tag, encoded_value) instead of preserving
// their given order. Ordinary []any values are treated as sequences.
type SetValue []any

// MarkSet wraps values so the canonicalizer treats them as a set rather
// than an ordered sequence.
func MarkSet(values []any) SetValue {
	return SetValue(values)
}

// Canonicalize serializes v to its byte-stable canonical JSON form.
func Canonicalize(v any) ([]byte, error) {
	norm, err := normalize(v, "")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, norm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SHA256Canonical returns the "sha256:"-prefixed hex digest of v's
// canonical JSON form.
func SHA256Canonical(v any) (string, error) {
	digest, err := SHA256CanonicalBare(v)
	if err != nil {
		return "", err
	}
	return "sha256:" + digest, nil
}

// SHA256CanonicalBare returns the bare 64-hex digest of v's canonical JSON
// form, for fields (like impl_fingerprint.digest) that never carry the
// "sha256:" prefix.
func SHA256CanonicalBare(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return hashBytes(b), nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashJSONFile reads path, parses it as JSON, and hashes the parse — so a
// pretty-printed and a minified file with the same semantic content digest
// identically.
func HashJSONFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	v, err := DecodeJSON(b)
	if err != nil {
		return "", err
	}
	return SHA256Canonical(v)
}

// DecodeJSON parses JSON bytes into the value model Canonicalize expects:
// numbers are preserved as json.Number so integer-vs-float classification
// happens in one place (normalize), not silently via float64 round-trip.
func DecodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalized is the post-validation value model: nil, bool, int64, string,
// *omap (sorted string-keyed mapping), or []any (already-ordered sequence).
type omap struct {
	keys   []string
	values map[string]any
}

// normalize validates v is pure JSON (floats banned), NFC-normalizes
// strings, sorts mapping keys recursively, and resolves SetValue ordering.
// Returns a tree of nil/bool/int64/string/*omap/[]any.
func normalize(v any, path string) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return t, nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return nil, errAt(path, "floats are not allowed; use strings for decimals instead")
	case json.Number:
		return normalizeNumber(t, path)
	case string:
		return norm.NFC.String(t), nil
	case SetValue:
		return normalizeSet(t, path)
	case []any:
		return normalizeArray(t, path)
	case map[string]any:
		return normalizeMapping(t, path)
	default:
		return nil, errAt(path, "unsupported type for canonicalization: %T", v)
	}
}

func normalizeNumber(n json.Number, path string) (any, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return nil, errAt(path, "floats are not allowed; use strings for decimals instead")
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errAt(path, "integer literal %q out of range", s)
	}
	return i, nil
}

func normalizeArray(a []any, path string) ([]any, error) {
	out := make([]any, len(a))
	for i, item := range a {
		nv, err := normalize(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}

func normalizeMapping(m map[string]any, path string) (*omap, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalizedKeys := make([]string, len(keys))
	values := make(map[string]any, len(keys))
	for i, k := range keys {
		nk := norm.NFC.String(k)
		normalizedKeys[i] = nk
		sub := joinPath(path, nk)
		nv, err := normalize(m[k], sub)
		if err != nil {
			return nil, err
		}
		values[nk] = nv
	}
	sort.Strings(normalizedKeys)
	return &omap{keys: normalizedKeys, values: values}, nil
}

func normalizeSet(s SetValue, path string) ([]any, error) {
	items := make([]any, len(s))
	for i, item := range s {
		nv, err := normalize(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		items[i] = nv
	}
	sort.Slice(items, func(i, j int) bool {
		ti, ki := sortKey(items[i])
		tj, kj := sortKey(items[j])
		if ti != tj {
			return ti < tj
		}
		return ki < kj
	})
	return items, nil
}

// typeTag implements the lattice null < bool < int < string < mapping <
// array.
func typeTag(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64:
		return 2
	case string:
		return 3
	case *omap:
		return 4
	case []any:
		return 5
	default:
		return 6
	}
}

// sortKey returns (type_tag, encoded_value) for the total order used by
// set canonicalization.
func sortKey(v any) (int, string) {
	tag := typeTag(v)
	switch t := v.(type) {
	case nil:
		return tag, ""
	case bool:
		if t {
			return tag, "1"
		}
		return tag, "0"
	case int64:
		return tag, strconv.FormatInt(t, 10)
	case string:
		return tag, t
	default:
		var buf bytes.Buffer
		_ = encode(&buf, v)
		return tag, buf.String()
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// encode writes the normalized value model as canonical JSON bytes:
// "," / ":" separators, no whitespace, mapping keys already sorted.
func encode(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case string:
		encodeString(buf, t)
	case *omap:
		buf.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encode(buf, t.values[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("canon: unreachable value kind %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// encodeString writes a JSON string literal without HTML-escaping and
// without ensure_ascii — UTF-8 bytes are emitted as-is, matching
// json.dumps(..., ensure_ascii=False). Only the characters JSON itself
// requires escaping are escaped.
func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[(r>>4)&0xf])
				buf.WriteByte(hexDigits[r&0xf])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
