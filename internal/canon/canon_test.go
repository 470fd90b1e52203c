package canon

import (
	"strings"
	"testing"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	t.Parallel()

	v := map[string]any{"b": 1, "a": 2}
	b, err := Canonicalize(v)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"a":2,"b":1}`; got != want {
		t.Errorf("Canonicalize() = %q, want %q", got, want)
	}
}

func TestCanonicalizeKeyOrderIndependence(t *testing.T) {
	t.Parallel()

	a := map[string]any{"x": 1, "y": 2}
	b := map[string]any{"y": 2, "x": 1}
	ba, err := Canonicalize(a)
	if err != nil {
		t.Fatal(err)
	}
	bb, err := Canonicalize(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(ba) != string(bb) {
		t.Errorf("key order changed output: %q vs %q", ba, bb)
	}
}

func TestCanonicalizeRejectsFloat(t *testing.T) {
	t.Parallel()

	_, err := Canonicalize(map[string]any{"x": 1.5})
	if err == nil {
		t.Fatal("expected error for float value")
	}
	if !strings.Contains(err.Error(), "floats") {
		t.Errorf("error = %v, want mention of floats", err)
	}
}

func TestCanonicalizeNFCNormalization(t *testing.T) {
	t.Parallel()

	// "é" as a single codepoint (NFC) vs "e" + combining acute (NFD).
	nfc := "é"
	nfd := "é"
	ha, err := SHA256Canonical(nfc)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := SHA256Canonical(nfd)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Errorf("NFC and NFD forms hashed differently: %s vs %s", ha, hb)
	}
}

func TestCanonicalizeArrayPreservesOrder(t *testing.T) {
	t.Parallel()

	v := []any{int64(3), int64(1), int64(2)}
	b, err := Canonicalize(v)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `[3,1,2]`; got != want {
		t.Errorf("Canonicalize() = %q, want %q", got, want)
	}
}

func TestCanonicalizeSetSortsByTypeThenValue(t *testing.T) {
	t.Parallel()

	v := MarkSet([]any{"b", int64(2), nil, true, "a", int64(1)})
	b, err := Canonicalize(v)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `[null,true,1,2,"a","b"]`; got != want {
		t.Errorf("Canonicalize() = %q, want %q", got, want)
	}
}

func TestSHA256CanonicalPrefix(t *testing.T) {
	t.Parallel()

	prefixed, err := SHA256Canonical("x")
	if err != nil {
		t.Fatal(err)
	}
	bare, err := SHA256CanonicalBare("x")
	if err != nil {
		t.Fatal(err)
	}
	if prefixed != "sha256:"+bare {
		t.Errorf("prefixed = %q, bare = %q, mismatch", prefixed, bare)
	}
	if len(bare) != 64 {
		t.Errorf("bare digest length = %d, want 64", len(bare))
	}
}

func TestDecodeJSONRejectsFloat(t *testing.T) {
	t.Parallel()

	v, err := DecodeJSON([]byte(`{"x": 1.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Canonicalize(v); err == nil {
		t.Fatal("expected error canonicalizing a decoded float")
	}
}

func TestDecodeJSONPreservesLargeInts(t *testing.T) {
	t.Parallel()

	v, err := DecodeJSON([]byte(`{"x": 9007199254740993}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Canonicalize(v)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"x":9007199254740993}`; got != want {
		t.Errorf("Canonicalize() = %q, want %q", got, want)
	}
}
