package routing

import (
	"fmt"
	"regexp"
	"strings"
)

// Match policy names accepted by NewMatcher.
const (
	MatchLoose   = "loose"
	MatchSuffix  = "suffix"
	MatchExact   = "exact"
	MatchPattern = "pattern"
)

// Matcher decides whether a rule applies to a routing key (a hostname or a
// request path).
//
// Implementations must be safe for concurrent use.
type Matcher interface {
	Match(rule Rule, key string) bool

	// Name returns the policy name for logging.
	Name() string
}

// NewMatcher returns the matcher for policy.
func NewMatcher(policy string) (Matcher, error) {
	switch policy {
	case "", MatchLoose:
		return LooseMatcher{}, nil
	case MatchSuffix:
		return SuffixMatcher{}, nil
	case MatchExact:
		return ExactMatcher{}, nil
	case MatchPattern:
		return PatternMatcher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}
}

// LooseMatcher matches when the host equals the domain, is a subdomain of it
// or contains it anywhere. The substring case lets "api.example.com" match
// "api.example.com.evil.net"; use SuffixMatcher to rule that out.
type LooseMatcher struct{}

// Match implements Matcher.
func (LooseMatcher) Match(rule Rule, host string) bool {
	domain, host, ok := normalize(rule.Domain, host)
	if !ok {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain) || strings.Contains(host, domain)
}

// Name implements Matcher.
func (LooseMatcher) Name() string { return MatchLoose }

// SuffixMatcher matches the domain itself and its subdomains.
type SuffixMatcher struct{}

// Match implements Matcher.
func (SuffixMatcher) Match(rule Rule, host string) bool {
	domain, host, ok := normalize(rule.Domain, host)
	if !ok {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Name implements Matcher.
func (SuffixMatcher) Name() string { return MatchSuffix }

// ExactMatcher matches the domain only.
type ExactMatcher struct{}

// Match implements Matcher.
func (ExactMatcher) Match(rule Rule, host string) bool {
	domain, host, ok := normalize(rule.Domain, host)
	return ok && host == domain
}

// Name implements Matcher.
func (ExactMatcher) Name() string { return MatchExact }

// PatternMatcher tests the rule's Pattern as a regular expression against the
// request path. Rules with an invalid pattern never match.
type PatternMatcher struct{}

// Match implements Matcher.
func (PatternMatcher) Match(rule Rule, path string) bool {
	if rule.Pattern == "" {
		return false
	}
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// Name implements Matcher.
func (PatternMatcher) Name() string { return MatchPattern }

// normalize lowercases both names and drops a trailing dot. An empty domain
// never matches.
func normalize(domain, host string) (string, string, bool) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return domain, host, domain != "" && host != ""
}
