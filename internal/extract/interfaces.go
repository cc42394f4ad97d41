package extract

import (
	"context"

	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// Extractor turns raw expense input into a best-effort set of fields.
//
// Implementations never fail hard: when the model is unreachable or returns
// garbage, they return a (possibly empty) ExtractedFields carrying a
// diagnostic instead of an error. Extraction failure degrades to an unknown
// transaction; it does not abort ingestion.
type Extractor interface {
	// ExtractText parses a free-form expense message.
	ExtractText(ctx context.Context, text string) schema.ExtractedFields

	// ExtractReceipt parses a receipt image previously stored under the
	// given asset URI (gs://bucket/object).
	ExtractReceipt(ctx context.Context, assetURI, mimeType string) schema.ExtractedFields
}
