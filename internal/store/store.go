package store

import (
	"context"

	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// TransactionLog is the append-only persistence boundary for normalized
// expenses. There are deliberately no update or delete operations: a record
// is immutable once appended.
type TransactionLog interface {
	// Append writes the record unconditionally, assigning an id when one is
	// not already set, and returns the stored record. A write that cannot
	// reach the backing store is a hard failure; nothing is retried.
	Append(ctx context.Context, rec schema.TransactionRecord) (schema.TransactionRecord, error)

	// ReadAll returns every record ever appended for the given owning
	// identity, in no particular order.
	ReadAll(ctx context.Context, userID string) ([]schema.TransactionRecord, error)

	Close() error
}
