package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"simplesalt/authproxy/pkg/config"
)

var (
	// ErrInvalidPolicy is returned for an unknown match policy.
	ErrInvalidPolicy = errors.New("invalid match policy")

	// ErrInvalidDocument is returned when a routing document cannot be parsed.
	ErrInvalidDocument = errors.New("invalid routing document")

	// ErrInvalidTarget is returned when a rule's target cannot form an upstream URL.
	ErrInvalidTarget = errors.New("invalid route target")
)

// Resolver picks the first rule that matches a routing key.
// It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	matcher Matcher
	logger  *slog.Logger
}

// NewResolver creates a resolver for the given match policy.
func NewResolver(policy string, logger *slog.Logger) (*Resolver, error) {
	m, err := NewMatcher(policy)
	if err != nil {
		return nil, err
	}
	return NewResolverWithMatcher(m, logger), nil
}

// PolicyForMode returns the match policy used in a deployment mode. Path
// mode always matches patterns; domain mode uses the configured policy.
func PolicyForMode(mode, policy string) string {
	if mode == config.ModePath {
		return MatchPattern
	}
	return policy
}

// NewResolverWithMatcher creates a resolver around an existing matcher.
func NewResolverWithMatcher(m Matcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{matcher: m, logger: logger.With("component", "routing.resolver")}
}

// Policy returns the name of the resolver's match policy.
func (r *Resolver) Policy() string {
	return r.matcher.Name()
}

// Resolve returns a copy of the first rule, in document order, that matches key.
func (r *Resolver) Resolve(rules []Rule, key string) (*Rule, bool) {
	for i := range rules {
		if r.matcher.Name() == MatchPattern && rules[i].Pattern != "" {
			if _, err := regexp.Compile(rules[i].Pattern); err != nil {
				r.logger.Warn("skipping rule with invalid pattern",
					"index", i,
					"pattern", rules[i].Pattern,
					"error", err,
				)
				continue
			}
		}
		if r.matcher.Match(rules[i], key) {
			rule := rules[i]
			return &rule, true
		}
	}
	return nil, false
}

// PathTarget builds the upstream URL for a path rule: the rule's target
// followed by the request path with the first pattern match removed, then
// the original query string.
func PathTarget(rule Rule, path, rawQuery string) (*url.URL, error) {
	if rule.Target == "" {
		return nil, fmt.Errorf("%w: rule %q has no target", ErrInvalidTarget, rule.Pattern)
	}

	rest := path
	if rule.Pattern != "" {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		if loc := re.FindStringIndex(path); loc != nil {
			rest = path[:loc[0]] + path[loc[1]:]
		}
	}

	target := strings.TrimSuffix(rule.Target, "/")
	if rest != "" && !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}

	u, err := url.Parse(target + rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidTarget, rule.Target)
	}
	u.RawQuery = rawQuery
	return u, nil
}
