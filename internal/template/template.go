package template

import (
	"regexp"
	"strings"

	"github.com/gestornet/invoice-extractor/internal/rules"
)

// Template is an advisor-specific ordered set of field rules. Once loaded a
// Template is read-only; request processing never mutates it.
type Template struct {
	ID      string // "<advisor>/<name>"
	Advisor string
	Name    string
	Match   *regexp.Regexp // optional filename pattern
	Rules   []rules.FieldRule
}

// Matches reports whether this template applies to the given filename.
// Templates without an explicit match pattern apply to filenames that start
// with the template name.
func (t *Template) Matches(filename string) bool {
	if t.Match != nil {
		return t.Match.MatchString(filename)
	}
	return strings.HasPrefix(strings.ToLower(filename), strings.ToLower(t.Name))
}
