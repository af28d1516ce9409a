package canonicalize

import (
	"strings"
	"testing"
)

func TestJCSSortsKeys(t *testing.T) {
	out, err := JCS(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":1,"b":2}` {
		t.Fatalf("unexpected canonical form: %s", out)
	}
}

func TestCanonicalHashDeterministic(t *testing.T) {
	type rec struct {
		ID  string `json:"id"`
		Seq uint64 `json:"seq"`
	}
	h1, err := CanonicalHash(rec{ID: "d-1", Seq: 3})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := CanonicalHash(rec{ID: "d-1", Seq: 3})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s vs %s", h1, h2)
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Fatalf("missing algorithm prefix: %s", h1)
	}
}

func TestCanonicalHashSensitivity(t *testing.T) {
	h1, _ := CanonicalHash(map[string]any{"seq": 1})
	h2, _ := CanonicalHash(map[string]any{"seq": 2})
	if h1 == h2 {
		t.Fatal("distinct inputs must not collide")
	}
}
