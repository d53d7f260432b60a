package ids

import "testing"

func TestNew_ReturnsUniqueValues(t *testing.T) {
	a := New()
	b := New()
	if a == b {
		t.Error("expected two calls to New to return distinct identifiers")
	}
	if len(a) != 36 {
		t.Errorf("expected a canonical UUID string (36 chars), got %d: %s", len(a), a)
	}
}
