package normalize

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"

	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// Normalizer turns sparse, untrusted extraction output into a complete
// TransactionRecord. Normalize is a total function: every missing or
// malformed field maps to a documented default, so it can never fail no
// matter what the extractor returned.
type Normalizer struct {
	userID          string
	defaultCurrency string

	nowFn func() time.Time
	idFn  func() string
}

// New creates a Normalizer for the configured owning identity and default
// currency.
func New(userID, defaultCurrency string) *Normalizer {
	return &Normalizer{
		userID:          userID,
		defaultCurrency: defaultCurrency,
		nowFn:           time.Now,
		idFn:            uuid.NewString,
	}
}

// NewWithDeps creates a Normalizer with an injected clock and id generator
// for testing.
func NewWithDeps(userID, defaultCurrency string, nowFn func() time.Time, idFn func() string) *Normalizer {
	return &Normalizer{
		userID:          userID,
		defaultCurrency: defaultCurrency,
		nowFn:           nowFn,
		idFn:            idFn,
	}
}

// Normalize builds a complete record from whatever the extractor produced.
// rawURI should be the stored asset URI for receipt-sourced records and
// empty for text-sourced ones.
func (n *Normalizer) Normalize(fields schema.ExtractedFields, source schema.Source, rawURI string) schema.TransactionRecord {
	rec := schema.TransactionRecord{
		ID:       n.idFn(),
		UserID:   n.userID,
		Ts:       n.timestamp(fields.Datetime),
		Merchant: "unknown",
		Currency: n.defaultCurrency,
		Subtotal: numberOrZero(fields.Subtotal),
		Tax:      numberOrZero(fields.Tax),
		Tip:      numberOrZero(fields.Tip),
		Total:    numberOrZero(fields.Total),
		Category: schema.CategoryOther,
		Source:   source,
		RawURI:   rawURI,
	}

	if fields.Merchant != nil && strings.TrimSpace(*fields.Merchant) != "" {
		rec.Merchant = *fields.Merchant
	}
	if fields.Currency != nil && *fields.Currency != "" {
		rec.Currency = *fields.Currency
	}
	// Category is passed through as-is; the closed vocabulary only
	// constrains the model, not the store.
	if fields.Category != nil && *fields.Category != "" {
		rec.Category = *fields.Category
	}

	return rec
}

// timeParser accepts the loose datetime shapes models tend to emit
// ("2025-08-14", "2025-8-14 09:30", bare times). Naive values are read as
// UTC so no stored timestamp is ever zone-less.
var timeParser = &now.Config{
	TimeLocation: time.UTC,
	TimeFormats:  now.TimeFormats,
}

// timestamp parses the extracted datetime permissively, falling back to the
// current time when it is absent or has no valid interpretation. The result
// is always UTC.
func (n *Normalizer) timestamp(value *string) time.Time {
	if value == nil {
		return n.nowFn().UTC()
	}
	s := strings.TrimSpace(*value)
	if s == "" {
		return n.nowFn().UTC()
	}

	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC()
	}
	if ts, err := timeParser.Parse(s); err == nil {
		return ts.UTC()
	}

	return n.nowFn().UTC()
}

func numberOrZero(v *float64) float64 {
	if v == nil {
		return 0.0
	}
	return *v
}
