package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// transactionRow is the BigQuery row shape for one stored expense.
type transactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	UserID        string `bigquery:"user_id"`

	Ts     time.Time  `bigquery:"ts"`      // UTC timestamp of the expense
	TxDate civil.Date `bigquery:"tx_date"` // calendar date of ts, for partition-friendly queries

	Merchant string  `bigquery:"merchant"`
	Currency string  `bigquery:"currency"`
	Subtotal float64 `bigquery:"subtotal"`
	Tax      float64 `bigquery:"tax"`
	Tip      float64 `bigquery:"tip"`
	Total    float64 `bigquery:"total"`
	Category string  `bigquery:"category"`

	Source string `bigquery:"source"`
	RawURI string `bigquery:"raw_uri"`
}

// BigQueryLog is the TransactionLog implementation backed by a BigQuery
// table. The client is created once at startup and shared; the owning
// identity is the user_id column.
type BigQueryLog struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryLog wraps an existing BigQuery client. The caller owns the
// client's lifecycle unless Close is used.
func NewBigQueryLog(client *bigquery.Client, dataset, table string) *BigQueryLog {
	return &BigQueryLog{client: client, dataset: dataset, table: table}
}

// Append implements TransactionLog.
func (l *BigQueryLog) Append(ctx context.Context, rec schema.TransactionRecord) (schema.TransactionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	inserter := l.client.Dataset(l.dataset).Table(l.table).Inserter()
	if err := inserter.Put(ctx, rowFromRecord(rec)); err != nil {
		return schema.TransactionRecord{}, fmt.Errorf("Append: inserting row: %w", err)
	}

	return rec, nil
}

// ReadAll implements TransactionLog.
func (l *BigQueryLog) ReadAll(ctx context.Context, userID string) ([]schema.TransactionRecord, error) {
	q := l.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			ts,
			tx_date,
			merchant,
			currency,
			subtotal,
			tax,
			tip,
			total,
			category,
			source,
			raw_uri
		FROM %s.%s
		WHERE user_id = @user_id
	`, l.dataset, l.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadAll: query read: %w", err)
	}

	var records []schema.TransactionRecord
	for {
		var row transactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadAll: iter next: %w", err)
		}
		records = append(records, recordFromRow(row))
	}

	return records, nil
}

// Close closes the underlying BigQuery client.
func (l *BigQueryLog) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

func rowFromRecord(rec schema.TransactionRecord) *transactionRow {
	ts := rec.Ts.UTC()
	return &transactionRow{
		TransactionID: rec.ID,
		UserID:        rec.UserID,
		Ts:            ts,
		TxDate:        civil.DateOf(ts),
		Merchant:      rec.Merchant,
		Currency:      rec.Currency,
		Subtotal:      rec.Subtotal,
		Tax:           rec.Tax,
		Tip:           rec.Tip,
		Total:         rec.Total,
		Category:      rec.Category,
		Source:        string(rec.Source),
		RawURI:        rec.RawURI,
	}
}

func recordFromRow(row transactionRow) schema.TransactionRecord {
	return schema.TransactionRecord{
		ID:       row.TransactionID,
		UserID:   row.UserID,
		Ts:       row.Ts.UTC(),
		Merchant: row.Merchant,
		Currency: row.Currency,
		Subtotal: row.Subtotal,
		Tax:      row.Tax,
		Tip:      row.Tip,
		Total:    row.Total,
		Category: row.Category,
		Source:   schema.Source(row.Source),
		RawURI:   row.RawURI,
	}
}

var _ TransactionLog = (*BigQueryLog)(nil)
