// Package classifier flags domains that match suspicious lexical patterns.
//
// Matching is a heuristic: a single pattern hit is enough, there is no
// scoring and no allow-list.
package classifier

import (
	"fmt"
	"regexp"

	"github.com/coral-mesh/netwatch/internal/errors"
)

// DefaultPatterns are matched case-insensitively anywhere in the domain.
// `\d{5,}` catches numeric or generated hostnames.
var DefaultPatterns = []string{
	"unknown",
	"tor",
	"crypt",
	"xyz",
	"top",
	"onion",
	`\d{5,}`,
	"dyn",
	"no-ip",
}

// Classifier holds a compiled, ordered pattern list. It is immutable and
// safe for concurrent use.
type Classifier struct {
	patterns []string
	compiled []*regexp.Regexp
}

// New compiles patterns as case-insensitive regular expressions.
func New(patterns []string) (*Classifier, error) {
	c := &Classifier{
		patterns: append([]string(nil), patterns...),
		compiled: make([]*regexp.Regexp, 0, len(patterns)),
	}
	for i, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %d %q: %w", i, p, err)
		}
		c.compiled = append(c.compiled, re)
	}
	return c, nil
}

// MustDefault returns a Classifier over DefaultPatterns.
func MustDefault() *Classifier {
	c, err := New(DefaultPatterns)
	errors.Must(err, "compile default patterns")
	return c
}

// IsSuspicious reports whether any pattern matches domain.
func (c *Classifier) IsSuspicious(domain string) bool {
	_, ok := c.Match(domain)
	return ok
}

// Match returns the first pattern, in list order, that matches domain.
func (c *Classifier) Match(domain string) (string, bool) {
	for i, re := range c.compiled {
		if re.MatchString(domain) {
			return c.patterns[i], true
		}
	}
	return "", false
}

// Patterns returns a copy of the pattern list.
func (c *Classifier) Patterns() []string {
	return append([]string(nil), c.patterns...)
}
