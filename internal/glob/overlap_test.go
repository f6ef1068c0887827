package glob

import "testing"

func TestOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"*.go", "*.go", true},
		{"*.go", "*.rs", false},
		{"main.go", "main.go", true},
		{"main.go", "other.go", false},
		{"*.go", "main.go", true},
		{"internal/*.go", "internal/engine.go", true},
		{"internal/*.go", "pkg/*.go", false},
		{"src/?.go", "src/a.go", true},
		{"src/?.go", "src/ab.go", false},
		{"a/*", "a/b", true},
		{"a/*", "a/b/c", false}, // star does not cross separators
		{"*", "anything", true},
		{"ab*cd", "abXXcd", true},
		{"ab*cd", "abXXce", false},
	}
	for _, tt := range tests {
		if got := Overlap(tt.a, tt.b); got != tt.want {
			t.Errorf("Overlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOverlapIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"*.go", "main.go"},
		{"a/*/c.go", "a/b/*.go"},
		{"ab*", "*cd"},
	}
	for _, p := range pairs {
		if Overlap(p[0], p[1]) != Overlap(p[1], p[0]) {
			t.Errorf("Overlap(%q, %q) not symmetric", p[0], p[1])
		}
	}
}

func TestAnyOverlap(t *testing.T) {
	if !AnyOverlap([]string{"docs/*", "src/*.go"}, []string{"src/engine.go"}) {
		t.Fatal("expected overlap on src/engine.go")
	}
	if AnyOverlap([]string{"docs/*"}, []string{"src/engine.go"}) {
		t.Fatal("expected no overlap")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("internal/*.go"); err != nil {
		t.Fatalf("normal pattern rejected: %v", err)
	}
	if err := Validate(""); err == nil {
		t.Fatal("expected error for empty pattern")
	}
	if err := Validate("?????????????????*"); err == nil {
		t.Fatal("expected complexity error")
	}
}
