// Package capability models the grant set of an acting principal. Grants
// are owned and resolved by the host platform; the billing engine reads a
// set once per decision and never writes to it.
package capability

import "strings"

// Set is a principal's resolved capabilities at decision time: capability
// string to granted flag. Lookups are case-insensitive, matching the host
// platform's permission semantics.
type Set map[string]bool

// NewSet builds a Set from granted capability strings.
func NewSet(granted ...string) Set {
	s := make(Set, len(granted))
	for _, g := range granted {
		s[strings.ToLower(g)] = true
	}
	return s
}

// Has reports whether the capability is granted.
func (s Set) Has(name string) bool {
	if s == nil {
		return false
	}
	if v, ok := s[name]; ok {
		return v
	}
	return s[strings.ToLower(name)]
}

// Granted returns the granted capability strings. Entries with a false
// value (explicit revocations) are excluded.
func (s Set) Granted() []string {
	out := make([]string, 0, len(s))
	for name, ok := range s {
		if ok {
			out = append(out, name)
		}
	}
	return out
}

// Resolver supplies the capability set for a principal. Implemented by the
// host platform; queried exactly once per billing decision.
type Resolver interface {
	Capabilities(principal string) Set
}

// StaticResolver is a fixed principal-to-grants table, useful for tests
// and standalone deployments.
type StaticResolver map[string]Set

// Capabilities returns the set for the principal, or nil if unknown.
func (r StaticResolver) Capabilities(principal string) Set {
	return r[principal]
}
