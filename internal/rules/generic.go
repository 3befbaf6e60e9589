package rules

import (
	"regexp"

	"github.com/gestornet/invoice-extractor/internal/models"
)

// genericPriority is the default priority of the built-in fallback rules;
// template rules default to 0 and therefore win ties.
const genericPriority = 1

// amount captures the number together with an adjacent currency marker so
// the normalizer can infer the decimal separator from it.
const amount = `([0-9][0-9.,]*(?:\s?(?:€|EUR|\$|USD|£|GBP))?)`

var genericRules = []FieldRule{
	{
		ID:       "generic:invoice_number",
		Field:    models.FieldInvoiceNumber,
		Pattern:  regexp.MustCompile(`(?i)(?:factura|invoice|fra\.?)\s*(?:n[ºo°.]{0,2}|simplificada|number|num\.?|#)?\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]{2,})`),
		Scope:    ScopeFirst,
		Priority: genericPriority,
	},
	{
		ID:       "generic:issue_date",
		Field:    models.FieldIssueDate,
		Pattern:  regexp.MustCompile(`(?i)(?:fecha(?:\s+de\s+(?:emisi[oó]n|expedici[oó]n|factura))?|data|date)\s*[:]?\s*(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`),
		Scope:    ScopeFirst,
		Priority: genericPriority,
	},
	{
		ID:       "generic:issue_date_text",
		Field:    models.FieldIssueDate,
		Pattern:  regexp.MustCompile(`(?i)(\d{1,2}\s+de\s+[a-záéíóúñ]+\s+de\s+\d{4})`),
		Scope:    ScopeFirst,
		Priority: genericPriority,
	},
	{
		ID:       "generic:issuer",
		Field:    models.FieldIssuer,
		Pattern:  regexp.MustCompile(`(?i)(?:raz[oó]n\s+social|emisor|issuer|emitida\s+por)\s*[:]?\s*([^\n]+)`),
		Scope:    ScopeFirst,
		Priority: genericPriority,
	},
	{
		ID:       "generic:issuer_tax_id",
		Field:    models.FieldIssuerTaxID,
		Pattern:  regexp.MustCompile(`(?i)(?:NIF|CIF|VAT(?:\s+ID)?)\s*[:.]?\s*([A-Z]?\s?\d{7,8}\s?[A-Z]?)`),
		Scope:    ScopeAny,
		Priority: genericPriority,
	},
	{
		ID:       "generic:total",
		Field:    models.FieldTotal,
		Pattern:  regexp.MustCompile(`(?i)total(?:\s+(?:factura|a\s+pagar|amount|due))?\s*[:]?\s*` + amount),
		Scope:    ScopeLast,
		Priority: genericPriority,
	},
	{
		ID:       "generic:tax",
		Field:    models.FieldTax,
		Pattern:  regexp.MustCompile(`(?i)(?:IVA|VAT|tax)\s*(?:\(?\d{1,2}(?:[.,]\d{1,2})?\s*%\)?)?\s*[:]?\s*` + amount),
		Scope:    ScopeLast,
		Priority: genericPriority,
	},
	{
		ID:       "generic:currency",
		Field:    models.FieldCurrency,
		Pattern:  regexp.MustCompile(`(€|\$|£|\bEUR\b|\bUSD\b|\bGBP\b)`),
		Scope:    ScopeAny,
		Priority: genericPriority,
	},
}

// Generic returns the advisor-independent fallback rule set, in order.
func Generic() []FieldRule {
	out := make([]FieldRule, len(genericRules))
	copy(out, genericRules)
	return out
}
