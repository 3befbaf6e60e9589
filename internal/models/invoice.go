package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PageSource tags where the text of a page came from.
type PageSource string

const (
	SourceEmbedded   PageSource = "embedded"
	SourceRecognized PageSource = "recognized"
)

// Document is a single uploaded PDF within a batch. Inputs are immutable;
// the pipeline never writes back into a Document.
type Document struct {
	Content  []byte `json:"-"`
	Filename string `json:"filename"`
	Advisor  string `json:"advisor,omitempty"`
	ForceOCR bool   `json:"forceOcr"`
}

// ExtractedPage holds the text of one page, in page order.
type ExtractedPage struct {
	Number  int        `json:"number"` // 1-based
	Text    string     `json:"text"`
	Source  PageSource `json:"source"`
	Quality float64    `json:"quality"` // 0..1, OCR mean word confidence; 1.0 for embedded text
}

// Fixed field schema. Templates and generic rules may only populate these
// names; anything else is rejected when the template store loads.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldIssueDate     = "issue_date"
	FieldIssuer        = "issuer"
	FieldIssuerTaxID   = "issuer_tax_id"
	FieldTotal         = "total"
	FieldTax           = "tax"
	FieldCurrency      = "currency"
)

// SchemaFields returns the fixed schema in canonical order.
func SchemaFields() []string {
	return []string{
		FieldInvoiceNumber,
		FieldIssueDate,
		FieldIssuer,
		FieldIssuerTaxID,
		FieldTotal,
		FieldTax,
		FieldCurrency,
	}
}

// IsSchemaField reports whether name belongs to the fixed schema.
func IsSchemaField(name string) bool {
	switch name {
	case FieldInvoiceNumber, FieldIssueDate, FieldIssuer, FieldIssuerTaxID,
		FieldTotal, FieldTax, FieldCurrency:
		return true
	}
	return false
}

// FieldKind describes how a field's raw match is parsed.
type FieldKind string

const (
	KindDate     FieldKind = "date"
	KindAmount   FieldKind = "amount"
	KindCurrency FieldKind = "currency"
	KindText     FieldKind = "text"
)

// KindOf returns the declared kind for a schema field.
func KindOf(field string) FieldKind {
	switch field {
	case FieldIssueDate:
		return KindDate
	case FieldTotal, FieldTax:
		return KindAmount
	case FieldCurrency:
		return KindCurrency
	default:
		return KindText
	}
}

// RawMatch is one candidate value for a field, with provenance.
type RawMatch struct {
	Field    string `json:"field"`
	Value    string `json:"value"`
	RuleID   string `json:"ruleId"`
	Priority int    `json:"priority"`
	Page     int    `json:"page"`   // 1-based page the match came from
	Offset   int    `json:"offset"` // byte offset within the page text
	Order    int    `json:"order"`  // rule evaluation order, used as the final tie-break
}

// NormalizedField is the typed value a field resolved to, or an explicit
// unrecognized marker when the winning match could not be parsed.
type NormalizedField struct {
	Field        string           `json:"field"`
	Raw          string           `json:"raw"`
	Text         string           `json:"text,omitempty"`
	Date         *time.Time       `json:"date,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Unrecognized bool             `json:"unrecognized,omitempty"`
	RuleID       string           `json:"ruleId"`
	Page         int              `json:"page"`
}

// DocumentStatus is the per-document outcome.
type DocumentStatus string

const (
	StatusOK      DocumentStatus = "ok"
	StatusPartial DocumentStatus = "partial"
	StatusFailed  DocumentStatus = "failed"
)

// DocumentResult is produced for every input document, failures included.
type DocumentResult struct {
	Filename   string                     `json:"filename"`
	Status     DocumentStatus             `json:"status"`
	Template   string                     `json:"template,omitempty"` // advisor/template id, empty when generic rules only
	Fields     map[string]NormalizedField `json:"fields,omitempty"`
	Missing    []string                   `json:"missing,omitempty"` // schema fields no rule matched
	Confidence float64                    `json:"confidence"`
	Error      string                     `json:"error,omitempty"`
}

// BatchResult aggregates one DocumentResult per input document, in input
// order. A batch never aborts because one document failed.
type BatchResult struct {
	BatchID     string           `json:"batchId"`
	Advisor     string           `json:"advisor,omitempty"`
	ForceOCR    bool             `json:"forceOcr"`
	Documents   []DocumentResult `json:"documents"`
	ProcessedAt time.Time        `json:"processedAt"`
}
