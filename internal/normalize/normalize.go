package normalize

import (
	"sort"
	"strings"

	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/pkg/logger"
)

// Normalizer selects one winning RawMatch per field and converts it into a
// typed value. Parsing failures are contained per field: the field is
// marked unrecognized, never an error.
type Normalizer struct {
	defaultLocale Locale
	logger        logger.Logger
}

func NewNormalizer(defaultLocale Locale, log logger.Logger) *Normalizer {
	if defaultLocale == "" {
		defaultLocale = LocaleCommaDecimal
	}
	return &Normalizer{defaultLocale: defaultLocale, logger: log}
}

// Normalize groups candidates by field, picks the winner per field (lowest
// priority number, then earliest page, then earliest rule evaluation order)
// and parses it by the field's declared kind. The second return value lists
// the schema fields with no candidate at all ("not found", as opposed to
// "unrecognized").
func (n *Normalizer) Normalize(matches []models.RawMatch, locale Locale) (map[string]models.NormalizedField, []string) {
	if locale == "" {
		locale = n.defaultLocale
	}

	byField := make(map[string][]models.RawMatch)
	for _, m := range matches {
		byField[m.Field] = append(byField[m.Field], m)
	}

	fields := make(map[string]models.NormalizedField, len(byField))
	var missing []string
	for _, field := range models.SchemaFields() {
		candidates, ok := byField[field]
		if !ok {
			missing = append(missing, field)
			continue
		}
		winner := pickWinner(candidates)
		fields[field] = n.parse(field, winner, locale)
	}

	return fields, missing
}

func pickWinner(candidates []models.RawMatch) models.RawMatch {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Offset < b.Offset
	})
	return candidates[0]
}

func (n *Normalizer) parse(field string, winner models.RawMatch, locale Locale) models.NormalizedField {
	out := models.NormalizedField{
		Field:  field,
		Raw:    winner.Value,
		RuleID: winner.RuleID,
		Page:   winner.Page,
	}

	switch models.KindOf(field) {
	case models.KindDate:
		t, err := parseDate(winner.Value)
		if err != nil {
			n.markUnrecognized(&out, err)
			break
		}
		out.Date = &t

	case models.KindAmount:
		d, _, err := parseAmount(winner.Value, locale)
		if err != nil {
			n.markUnrecognized(&out, err)
			break
		}
		out.Amount = &d

	case models.KindCurrency:
		code, err := normalizeCurrency(winner.Value)
		if err != nil {
			n.markUnrecognized(&out, err)
			break
		}
		out.Text = code

	default:
		out.Text = collapseWhitespace(winner.Value)
	}

	return out
}

func (n *Normalizer) markUnrecognized(f *models.NormalizedField, err error) {
	f.Unrecognized = true
	n.logger.Debug("field value unrecognized",
		logger.String("field", f.Field),
		logger.String("raw", f.Raw),
		logger.Error(err),
	)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
