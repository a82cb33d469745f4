package ws

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownTopic is returned by ParseFilter for a pattern that matches no
// forwarded topic.
var ErrUnknownTopic = errors.New("unknown topic")

// Filter selects topics by exact name or by a "group.*" pattern.
// The zero Filter matches everything.
type Filter struct {
	exact    map[string]struct{}
	prefixes []string
}

// ParseFilter reads a comma-separated pattern list such as
// "config.*,enhancer.theme_changed". Every pattern must match at least one
// of known. An empty string selects all topics.
func ParseFilter(patterns string, known []string) (Filter, error) {
	var f Filter
	for _, raw := range strings.Split(patterns, ",") {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		if p == "*" {
			return Filter{}, nil
		}

		var matches func(string) bool
		if group, ok := strings.CutSuffix(p, ".*"); ok {
			prefix := group + "."
			f.prefixes = append(f.prefixes, prefix)
			matches = func(t string) bool { return strings.HasPrefix(t, prefix) }
		} else {
			if f.exact == nil {
				f.exact = map[string]struct{}{}
			}
			f.exact[p] = struct{}{}
			matches = func(t string) bool { return t == p }
		}
		if !slices.ContainsFunc(known, matches) {
			return Filter{}, fmt.Errorf("%w: %q", ErrUnknownTopic, p)
		}
	}
	return f, nil
}

// All reports whether f matches every topic.
func (f Filter) All() bool { return f.exact == nil && f.prefixes == nil }

// Match reports whether topic passes f.
func (f Filter) Match(topic string) bool {
	if f.All() {
		return true
	}
	if _, ok := f.exact[topic]; ok {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

// Select returns the entries of known that pass f, in order.
func (f Filter) Select(known []string) []string {
	out := make([]string, 0, len(known))
	for _, t := range known {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
