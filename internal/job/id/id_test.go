package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	got := Generate()

	if !strings.HasPrefix(got, "job-") {
		t.Errorf("Generate() = %q, want job- prefix", got)
	}

	parts := strings.Split(got, "-")
	if len(parts) != 3 {
		t.Fatalf("Generate() = %q, want 3 dash-separated parts", got)
	}
	if len(parts[2]) != 8 {
		t.Errorf("random suffix %q has length %d, want 8", parts[2], len(parts[2]))
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := Generate()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
