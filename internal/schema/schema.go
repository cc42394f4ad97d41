package schema

import (
	"time"
)

// Source records where an expense entered the system.
type Source string

const (
	// SourceText marks records ingested from a free-form text message.
	SourceText Source = "text"

	// SourceReceipt marks records ingested from an uploaded receipt image.
	SourceReceipt Source = "receipt"
)

// CategoryOther is the fallback category for anything the extractor could
// not (or did not) classify.
const CategoryOther = "other"

// Categories is the closed vocabulary offered to the extraction model.
// Stored records are NOT re-validated against it; whatever the extractor
// returns is passed through.
var Categories = []string{
	"food", "transport", "grocery", "rent", "utilities",
	"shopping", "health", "entertainment", "coffee", CategoryOther,
}

// LineItem is a single itemized entry on a receipt.
type LineItem struct {
	Desc  string   `json:"desc"`
	Qty   *float64 `json:"qty,omitempty"`
	Price float64  `json:"price"`
}

// ExtractedFields is the sparse, best-effort output of the extraction model.
// Every field is optional and untrusted: the model may omit, malform, or
// invent any of them. Consumers must treat nil as absent and never assume a
// value is well-formed.
type ExtractedFields struct {
	Merchant *string  `json:"merchant,omitempty"`
	Datetime *string  `json:"datetime,omitempty"`
	Currency *string  `json:"currency,omitempty"`
	Subtotal *float64 `json:"subtotal,omitempty"`
	Tax      *float64 `json:"tax,omitempty"`
	Tip      *float64 `json:"tip,omitempty"`
	Total    *float64 `json:"total,omitempty"`
	Category *string  `json:"category,omitempty"`

	LineItems []LineItem `json:"line_items,omitempty"`

	// Diagnostic carries the raw failure detail when extraction degraded
	// instead of producing fields. Informational only.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Empty reports whether extraction produced no usable fields at all.
func (f ExtractedFields) Empty() bool {
	return f.Merchant == nil && f.Datetime == nil && f.Currency == nil &&
		f.Subtotal == nil && f.Tax == nil && f.Tip == nil && f.Total == nil &&
		f.Category == nil && len(f.LineItems) == 0
}

// TransactionRecord is one fully normalized, stored expense. Unlike
// ExtractedFields every field always holds a concrete value; records are
// immutable once appended to the log.
type TransactionRecord struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Ts       time.Time `json:"ts"` // always UTC, never zero
	Merchant string    `json:"merchant"`
	Currency string    `json:"currency"`
	Subtotal float64   `json:"subtotal"`
	Tax      float64   `json:"tax"`
	Tip      float64   `json:"tip"`
	Total    float64   `json:"total"`
	Category string    `json:"category"`
	Source   Source    `json:"source"`

	// RawURI points at the stored receipt asset; empty for text-sourced
	// records.
	RawURI string `json:"raw_uri"`
}

// CategoryBucket is one row of a category report: the summed total for a
// single (lower-cased) category over the report window, rounded to cents.
type CategoryBucket struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}
