package runner

import (
	"net/url"
	"testing"

	"github.com/will-x86/brokenlinks/scope"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error: %v", raw, err)
	}
	return u
}

func TestPolicyAllowAll(t *testing.T) {
	current := mustParse(t, "https://example.com")

	for _, target := range []string{"https://example.com/page", "https://other.com", "not a url"} {
		if !PolicyAllowAll.ShouldEnqueue(current, target) {
			t.Errorf("PolicyAllowAll.ShouldEnqueue(%q) = false, want true", target)
		}
	}
}

func TestSameOriginPolicy(t *testing.T) {
	origin, _, err := scope.ParseSeed("http://example.com:8080/docs")
	if err != nil {
		t.Fatalf("ParseSeed() error: %v", err)
	}
	policy := NewSameOriginPolicy(origin)
	current := mustParse(t, "http://example.com:8080/docs")

	tests := []struct {
		target string
		want   bool
	}{
		{"http://example.com:8080", true},
		{"http://example.com:8080/docs/page", true},
		{"http://example.com:8080?q=1", true},
		{"http://example.com:8080.evil.test/", false},
		{"http://example.com/", false},
		{"https://example.com:8080/", false},
		{"http://other.com:8080/", false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := policy.ShouldEnqueue(current, tt.target); got != tt.want {
				t.Errorf("ShouldEnqueue(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestExcludePolicy(t *testing.T) {
	policy := NewExcludePolicy("/private", " ", "", "logout")
	current := mustParse(t, "https://example.com")

	tests := []struct {
		name   string
		target string
		want   bool
	}{
		{"plain page", "https://example.com/about", true},
		{"excluded path", "https://example.com/private/page", false},
		{"substring anywhere", "https://example.com/user?action=logout", false},
		{"blank entries ignored", "https://example.com/a b", true},
		{"case sensitive", "https://example.com/PRIVATE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ShouldEnqueue(current, tt.target); got != tt.want {
				t.Errorf("ShouldEnqueue(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestExcludePolicy_NoSubstrings(t *testing.T) {
	policy := NewExcludePolicy()
	if !policy.ShouldEnqueue(mustParse(t, "https://example.com"), "https://example.com/x") {
		t.Error("empty exclude policy should admit everything")
	}
}

func TestAllPolicy(t *testing.T) {
	origin, _, err := scope.ParseSeed("https://example.com")
	if err != nil {
		t.Fatalf("ParseSeed() error: %v", err)
	}
	policy := NewAllPolicy(NewSameOriginPolicy(origin), NewExcludePolicy("/private"))
	current := mustParse(t, "https://example.com")

	tests := []struct {
		target string
		want   bool
	}{
		{"https://example.com/public", true},
		{"https://example.com/private", false},
		{"https://other.com/public", false},
	}

	for _, tt := range tests {
		if got := policy.ShouldEnqueue(current, tt.target); got != tt.want {
			t.Errorf("ShouldEnqueue(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}

	if !NewAllPolicy().ShouldEnqueue(current, "https://anything.test") {
		t.Error("empty all policy should admit everything")
	}
}
