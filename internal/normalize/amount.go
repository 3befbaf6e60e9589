package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Locale selects the decimal separator convention used when the amount
// itself does not disambiguate.
type Locale string

const (
	LocaleCommaDecimal  Locale = "comma"  // 1.234,56 (es, gl)
	LocalePeriodDecimal Locale = "period" // 1,234.56 (en)
)

// ParseLocale maps a configured locale name to a Locale. Unknown names
// return the empty Locale, which reads as the normalizer default.
func ParseLocale(s string) Locale {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "comma", "es":
		return LocaleCommaDecimal
	case "period", "en":
		return LocalePeriodDecimal
	}
	return ""
}

// ParseLocales converts a configured advisor to locale-name map.
func ParseLocales(m map[string]string) map[string]Locale {
	out := make(map[string]Locale, len(m))
	for advisor, name := range m {
		out[advisor] = ParseLocale(name)
	}
	return out
}

// currencyMarkers maps symbols and codes found next to an amount to the
// ISO currency and the locale they imply. ISO codes only match as whole
// tokens so "EUROS" is not mistaken for "EUR" plus leftovers.
var currencyMarkers = []struct {
	marker   *regexp.Regexp
	currency string
	locale   Locale
}{
	{regexp.MustCompile(`€`), "EUR", LocaleCommaDecimal},
	{regexp.MustCompile(`\bEUR\b`), "EUR", LocaleCommaDecimal},
	{regexp.MustCompile(`\$`), "USD", LocalePeriodDecimal},
	{regexp.MustCompile(`\bUSD\b`), "USD", LocalePeriodDecimal},
	{regexp.MustCompile(`£`), "GBP", LocalePeriodDecimal},
	{regexp.MustCompile(`\bGBP\b`), "GBP", LocalePeriodDecimal},
}

// parseAmount turns a raw monetary substring like "1.234,56 €" into a
// decimal. The decimal separator is inferred from an adjacent currency
// marker first and the advisor's default locale otherwise.
func parseAmount(raw string, fallback Locale) (decimal.Decimal, string, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "\u00a0", " ") // OCR often emits non-breaking spaces

	locale := fallback
	currency := ""
	for _, m := range currencyMarkers {
		if m.marker.MatchString(s) {
			locale = m.locale
			currency = m.currency
			s = m.marker.ReplaceAllString(s, "")
			break
		}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, "", fmt.Errorf("empty amount %q", raw)
	}

	normalized, err := normalizeSeparators(s, locale)
	if err != nil {
		return decimal.Zero, "", err
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("unparseable amount %q: %w", raw, err)
	}
	return d, currency, nil
}

// normalizeSeparators rewrites the number into period-decimal form.
func normalizeSeparators(s string, locale Locale) (string, error) {
	commas := strings.Count(s, ",")
	periods := strings.Count(s, ".")

	switch {
	case commas > 0 && periods > 0:
		// Both present: the rightmost separator is the decimal one.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "") // repeated: thousands grouping
	case periods > 1:
		s = strings.ReplaceAll(s, ".", "")
	case commas == 1:
		s = resolveSingle(s, ",", locale == LocaleCommaDecimal)
	case periods == 1:
		s = resolveSingle(s, ".", locale == LocalePeriodDecimal)
	}

	if strings.ContainsAny(s, " ,") {
		return "", fmt.Errorf("ambiguous amount %q", s)
	}
	return s, nil
}

// resolveSingle decides whether the lone separator is decimal or thousands.
// One or two trailing digits always read as decimals; exactly three fall
// back to the locale.
func resolveSingle(s, sep string, sepIsDecimal bool) string {
	trailing := len(s) - strings.Index(s, sep) - 1
	decimalSep := trailing != 3 || sepIsDecimal
	if decimalSep {
		if sep == "," {
			return strings.Replace(s, ",", ".", 1)
		}
		return s
	}
	return strings.ReplaceAll(s, sep, "")
}

var isoCode = regexp.MustCompile(`^[A-Z]{3}$`)

// normalizeCurrency maps a currency symbol or code to its ISO code.
func normalizeCurrency(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "€", "EUR":
		return "EUR", nil
	case "$", "USD":
		return "USD", nil
	case "£", "GBP":
		return "GBP", nil
	}
	if isoCode.MatchString(s) {
		return s, nil
	}
	return "", fmt.Errorf("unknown currency %q", raw)
}
