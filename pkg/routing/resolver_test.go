package routing

import (
	"errors"
	"testing"
)

func TestMatchers(t *testing.T) {
	rule := Rule{Domain: "api.example.com"}

	tests := []struct {
		host   string
		loose  bool
		suffix bool
		exact  bool
	}{
		{host: "api.example.com", loose: true, suffix: true, exact: true},
		{host: "API.Example.com", loose: true, suffix: true, exact: true},
		{host: "api.example.com.", loose: true, suffix: true, exact: true},
		{host: "sub.api.example.com", loose: true, suffix: true, exact: false},
		{host: "api.example.com.evil.net", loose: true, suffix: false, exact: false},
		{host: "myapi.example.com", loose: true, suffix: false, exact: false},
		{host: "other.com", loose: false, suffix: false, exact: false},
		{host: "example.com", loose: false, suffix: false, exact: false},
		{host: "", loose: false, suffix: false, exact: false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := (LooseMatcher{}).Match(rule, tt.host); got != tt.loose {
				t.Errorf("loose: expected %v, got %v", tt.loose, got)
			}
			if got := (SuffixMatcher{}).Match(rule, tt.host); got != tt.suffix {
				t.Errorf("suffix: expected %v, got %v", tt.suffix, got)
			}
			if got := (ExactMatcher{}).Match(rule, tt.host); got != tt.exact {
				t.Errorf("exact: expected %v, got %v", tt.exact, got)
			}
		})
	}
}

func TestLooseMatcher_EmptyDomainNeverMatches(t *testing.T) {
	if (LooseMatcher{}).Match(Rule{Pattern: "^/x"}, "anything.com") {
		t.Error("a rule without a domain must not match hosts")
	}
}

func TestPatternMatcher(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{pattern: "^/api/stripe", path: "/api/stripe/v1/charges", want: true},
		{pattern: "^/api/stripe", path: "/v2/api/stripe", want: false},
		{pattern: "/github/", path: "/proxy/github/repos", want: true},
		{pattern: "([", path: "/anything", want: false},
		{pattern: "", path: "/anything", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			if got := (PatternMatcher{}).Match(Rule{Pattern: tt.pattern}, tt.path); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolver_FirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Domain: "example.com", SecretName: "BROAD"},
		{Domain: "api.example.com", SecretName: "NARROW"},
	}

	r, err := NewResolver(MatchLoose, nil)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	rule, ok := r.Resolve(rules, "api.example.com")
	if !ok {
		t.Fatal("expected a match")
	}
	if rule.SecretName != "BROAD" {
		t.Errorf("expected document order to win, got %q", rule.SecretName)
	}

	// The returned rule is a copy
	rule.SecretName = "MUTATED"
	if rules[0].SecretName != "BROAD" {
		t.Error("Resolve must not alias the caller's rules")
	}
}

func TestResolver_SubdomainAndMiss(t *testing.T) {
	rules := []Rule{{Domain: "api.example.com", SecretName: "S1"}}
	r, _ := NewResolver(MatchLoose, nil)

	if rule, ok := r.Resolve(rules, "sub.api.example.com"); !ok || rule.SecretName != "S1" {
		t.Errorf("expected subdomain to match S1, got %v %v", rule, ok)
	}
	if _, ok := r.Resolve(rules, "other.com"); ok {
		t.Error("expected other.com not to match")
	}
	if _, ok := r.Resolve(nil, "api.example.com"); ok {
		t.Error("expected empty rule set not to match")
	}
}

func TestResolver_PatternSkipsInvalid(t *testing.T) {
	rules := []Rule{
		{Pattern: "([", SecretName: "BROKEN"},
		{Pattern: "^/api", SecretName: "GOOD"},
	}
	r, _ := NewResolver(MatchPattern, nil)

	rule, ok := r.Resolve(rules, "/api/users")
	if !ok || rule.SecretName != "GOOD" {
		t.Errorf("expected GOOD, got %v %v", rule, ok)
	}
	if r.Policy() != MatchPattern {
		t.Errorf("expected policy %q, got %q", MatchPattern, r.Policy())
	}
}

func TestNewResolver_InvalidPolicy(t *testing.T) {
	_, err := NewResolver("fuzzy", nil)
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestPathTarget(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		path    string
		query   string
		want    string
		wantErr bool
	}{
		{
			name: "strips matched prefix",
			rule: Rule{Pattern: "^/api/stripe", Target: "https://api.stripe.com"},
			path: "/api/stripe/v1/charges",
			want: "https://api.stripe.com/v1/charges",
		},
		{
			name:  "keeps query",
			rule:  Rule{Pattern: "^/gh", Target: "https://api.github.com/"},
			path:  "/gh/repos",
			query: "per_page=5",
			want:  "https://api.github.com/repos?per_page=5",
		},
		{
			name: "whole path matched",
			rule: Rule{Pattern: "^/status$", Target: "https://status.example.com/health"},
			path: "/status",
			want: "https://status.example.com/health",
		},
		{
			name: "match without leading slash in remainder",
			rule: Rule{Pattern: "^/svc/", Target: "https://svc.example.com"},
			path: "/svc/items",
			want: "https://svc.example.com/items",
		},
		{
			name:    "missing target",
			rule:    Rule{Pattern: "^/x"},
			path:    "/x",
			wantErr: true,
		},
		{
			name:    "relative target",
			rule:    Rule{Pattern: "^/x", Target: "/internal"},
			path:    "/x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := PathTarget(tt.rule, tt.path, tt.query)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTarget) {
					t.Errorf("expected ErrInvalidTarget, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PathTarget failed: %v", err)
			}
			if u.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, u.String())
			}
		})
	}
}

func TestPolicyForMode(t *testing.T) {
	tests := []struct {
		mode, policy, want string
	}{
		{"domain", MatchSuffix, MatchSuffix},
		{"domain", "", ""},
		{"path", MatchExact, MatchPattern},
	}
	for _, tt := range tests {
		if got := PolicyForMode(tt.mode, tt.policy); got != tt.want {
			t.Errorf("PolicyForMode(%q, %q) = %q, want %q", tt.mode, tt.policy, got, tt.want)
		}
	}
}
