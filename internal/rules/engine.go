package rules

import (
	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/pkg/logger"
)

// Engine applies an effective rule sequence (template rules first, generic
// fallback after) against extracted pages and collects every candidate
// match. Tie-breaking between candidates happens later, at normalization,
// so provenance is never lost here.
type Engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{logger: log}
}

// Apply runs templateRules (may be nil, meaning no template matched)
// followed by the generic rule set. Every rule scans the pages allowed by
// its scope in page order; the leftmost occurrence per page is kept. A rule
// that matches nothing is silent, absence is not an error at this layer.
func (e *Engine) Apply(pages []models.ExtractedPage, templateRules []FieldRule) []models.RawMatch {
	effective := make([]FieldRule, 0, len(templateRules)+len(genericRules))
	effective = append(effective, templateRules...)
	effective = append(effective, Generic()...)

	var matches []models.RawMatch
	for order, rule := range effective {
		for _, page := range eligiblePages(pages, rule.Scope) {
			loc := rule.Pattern.FindStringSubmatchIndex(page.Text)
			if loc == nil {
				continue
			}

			start, end := loc[0], loc[1]
			// First capture group when the pattern declares one.
			if len(loc) >= 4 && loc[2] >= 0 {
				start, end = loc[2], loc[3]
			}

			matches = append(matches, models.RawMatch{
				Field:    rule.Field,
				Value:    page.Text[start:end],
				RuleID:   rule.ID,
				Priority: rule.Priority,
				Page:     page.Number,
				Offset:   loc[0],
				Order:    order,
			})
		}
	}

	e.logger.Debug("rule application finished",
		logger.Int("rules", len(effective)),
		logger.Int("matches", len(matches)),
	)

	return matches
}

func eligiblePages(pages []models.ExtractedPage, scope Scope) []models.ExtractedPage {
	if len(pages) == 0 {
		return nil
	}
	switch scope {
	case ScopeFirst:
		return pages[:1]
	case ScopeLast:
		return pages[len(pages)-1:]
	default:
		return pages
	}
}
