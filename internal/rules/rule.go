package rules

import (
	"regexp"
)

// Scope restricts which pages a rule may search.
type Scope string

const (
	ScopeAny   Scope = "any"
	ScopeFirst Scope = "first"
	ScopeLast  Scope = "last"
)

// ParseScope maps the template store spelling to a Scope, defaulting to any.
func ParseScope(s string) Scope {
	switch s {
	case "first":
		return ScopeFirst
	case "last":
		return ScopeLast
	default:
		return ScopeAny
	}
}

// FieldRule extracts one schema field. The first capture group of Pattern is
// the extracted value; patterns without groups use the whole match.
type FieldRule struct {
	ID       string
	Field    string
	Pattern  *regexp.Regexp
	Scope    Scope
	Priority int
}
