package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expenses-ingest/internal/normalize"
	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// mockExtractor is a func-field mock of extract.Extractor.
type mockExtractor struct {
	ExtractTextFunc    func(ctx context.Context, text string) schema.ExtractedFields
	ExtractReceiptFunc func(ctx context.Context, assetURI, mimeType string) schema.ExtractedFields
}

func (m *mockExtractor) ExtractText(ctx context.Context, text string) schema.ExtractedFields {
	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, text)
	}
	return schema.ExtractedFields{}
}

func (m *mockExtractor) ExtractReceipt(ctx context.Context, assetURI, mimeType string) schema.ExtractedFields {
	if m.ExtractReceiptFunc != nil {
		return m.ExtractReceiptFunc(ctx, assetURI, mimeType)
	}
	return schema.ExtractedFields{}
}

// memoryLog is an in-memory store.TransactionLog for handler tests.
type memoryLog struct {
	records   []schema.TransactionRecord
	appendErr error
	readErr   error
}

func (l *memoryLog) Append(ctx context.Context, rec schema.TransactionRecord) (schema.TransactionRecord, error) {
	if l.appendErr != nil {
		return schema.TransactionRecord{}, l.appendErr
	}
	l.records = append(l.records, rec)
	return rec, nil
}

func (l *memoryLog) ReadAll(ctx context.Context, userID string) ([]schema.TransactionRecord, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	var out []schema.TransactionRecord
	for _, rec := range l.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *memoryLog) Close() error { return nil }

// mockAssets is a func-field mock of assets.AssetStore.
type mockAssets struct {
	PutAssetFunc func(ctx context.Context, data []byte, contentType, filename string) (string, error)
}

func (m *mockAssets) PutAsset(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	if m.PutAssetFunc != nil {
		return m.PutAssetFunc(ctx, data, contentType, filename)
	}
	return "gs://test-bucket/receipts/asset.jpg", nil
}

func ptr[T any](v T) *T { return &v }

func testNormalizer() *normalize.Normalizer {
	fixed := time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)
	n := 0
	return normalize.NewWithDeps("demo", "CAD",
		func() time.Time { return fixed },
		func() string { n++; return fmt.Sprintf("id-%d", n) },
	)
}

func newExpensesHandler(extractor *mockExtractor, txlog *memoryLog, assetStore *mockAssets) *ExpensesHandler {
	return NewExpensesHandler(extractor, testNormalizer(), txlog, assetStore, nil, zerolog.Nop())
}

func TestIngestText(t *testing.T) {
	extractor := &mockExtractor{
		ExtractTextFunc: func(ctx context.Context, text string) schema.ExtractedFields {
			return schema.ExtractedFields{
				Merchant: ptr("Blue Bottle"),
				Total:    ptr(6.93),
				Category: ptr("coffee"),
			}
		},
	}
	txlog := &memoryLog{}
	h := newExpensesHandler(extractor, txlog, &mockAssets{})

	body := strings.NewReader(`{"text":"latte at blue bottle 6.93"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/expenses/text", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.IngestText(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Saved  bool                     `json:"saved"`
		Record schema.TransactionRecord `json:"record"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Saved {
		t.Error("saved = false")
	}
	if resp.Record.Merchant != "Blue Bottle" || resp.Record.Category != "coffee" {
		t.Errorf("record = %+v", resp.Record)
	}
	if resp.Record.Source != schema.SourceText || resp.Record.RawURI != "" {
		t.Errorf("provenance = %q/%q, want text with empty raw_uri", resp.Record.Source, resp.Record.RawURI)
	}
	if len(txlog.records) != 1 {
		t.Errorf("stored records = %d, want 1", len(txlog.records))
	}
}

func TestIngestText_DegradedExtractionStillStores(t *testing.T) {
	extractor := &mockExtractor{
		ExtractTextFunc: func(ctx context.Context, text string) schema.ExtractedFields {
			return schema.ExtractedFields{Diagnostic: "model unreachable"}
		},
	}
	txlog := &memoryLog{}
	h := newExpensesHandler(extractor, txlog, &mockAssets{})

	req := httptest.NewRequest(http.MethodPost, "/api/expenses/text",
		strings.NewReader("text=coffee+downtown"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.IngestText(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, degraded extraction must not fail ingestion", w.Code)
	}
	if len(txlog.records) != 1 {
		t.Fatalf("stored records = %d, want 1", len(txlog.records))
	}
	rec := txlog.records[0]
	if rec.Merchant != "unknown" || rec.Category != "other" || rec.Total != 0 {
		t.Errorf("record = %+v, want fully defaulted", rec)
	}
}

func TestIngestText_MissingText(t *testing.T) {
	h := newExpensesHandler(&mockExtractor{}, &memoryLog{}, &mockAssets{})

	req := httptest.NewRequest(http.MethodPost, "/api/expenses/text", strings.NewReader(""))
	w := httptest.NewRecorder()

	h.IngestText(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestIngestText_PersistenceFailure(t *testing.T) {
	txlog := &memoryLog{appendErr: errors.New("backend unreachable")}
	h := newExpensesHandler(&mockExtractor{}, txlog, &mockAssets{})

	req := httptest.NewRequest(http.MethodPost, "/api/expenses/text",
		strings.NewReader("text=lunch"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.IngestText(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 on persistence failure", w.Code)
	}
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename),
	}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestIngestReceipt(t *testing.T) {
	var gotURI, gotMime string
	extractor := &mockExtractor{
		ExtractReceiptFunc: func(ctx context.Context, assetURI, mimeType string) schema.ExtractedFields {
			gotURI, gotMime = assetURI, mimeType
			return schema.ExtractedFields{
				Merchant: ptr("Metro"),
				Total:    ptr(45.2),
				Category: ptr("grocery"),
			}
		},
	}
	txlog := &memoryLog{}
	h := newExpensesHandler(extractor, txlog, &mockAssets{})

	body, contentType := multipartBody(t, "file", "receipt.jpg", "image/jpeg", []byte("fake image bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/expenses/receipt", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.IngestReceipt(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if gotURI != "gs://test-bucket/receipts/asset.jpg" || gotMime != "image/jpeg" {
		t.Errorf("extractor got %q/%q", gotURI, gotMime)
	}
	if len(txlog.records) != 1 {
		t.Fatalf("stored records = %d, want 1", len(txlog.records))
	}
	rec := txlog.records[0]
	if rec.Source != schema.SourceReceipt || rec.RawURI != "gs://test-bucket/receipts/asset.jpg" {
		t.Errorf("provenance = %q/%q", rec.Source, rec.RawURI)
	}
}

func TestIngestReceipt_UploadFailure(t *testing.T) {
	assetStore := &mockAssets{
		PutAssetFunc: func(ctx context.Context, data []byte, contentType, filename string) (string, error) {
			return "", errors.New("bucket unreachable")
		},
	}
	txlog := &memoryLog{}
	h := newExpensesHandler(&mockExtractor{}, txlog, assetStore)

	body, contentType := multipartBody(t, "file", "receipt.jpg", "image/jpeg", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/expenses/receipt", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.IngestReceipt(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if len(txlog.records) != 0 {
		t.Errorf("no record should be stored when the upload fails")
	}
}

func TestReport(t *testing.T) {
	now := time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)
	txlog := &memoryLog{records: []schema.TransactionRecord{
		{UserID: "demo", Ts: now.AddDate(0, 0, -1), Category: "food", Total: 30},
		{UserID: "demo", Ts: now.AddDate(0, 0, -2), Category: "coffee", Total: 45},
		{UserID: "demo", Ts: now.AddDate(0, 0, -40), Category: "rent", Total: 1200},
		{UserID: "someone-else", Ts: now, Category: "food", Total: 99},
	}}

	h := NewReportHandler(txlog, "demo", zerolog.Nop())
	h.nowFn = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	w := httptest.NewRecorder()

	h.Report(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Days       int                     `json:"days"`
		ByCategory []schema.CategoryBucket `json:"by_category"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Days != 30 {
		t.Errorf("days = %d, want default 30", resp.Days)
	}
	if len(resp.ByCategory) != 2 {
		t.Fatalf("buckets = %+v, want coffee and food only", resp.ByCategory)
	}
	if resp.ByCategory[0].Category != "coffee" || resp.ByCategory[1].Category != "food" {
		t.Errorf("order = %+v, want coffee before food", resp.ByCategory)
	}
}

func TestReport_InvalidDays(t *testing.T) {
	h := NewReportHandler(&memoryLog{}, "demo", zerolog.Nop())

	for _, days := range []string{"abc", "0", "-5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/report?days="+days, nil)
		w := httptest.NewRecorder()
		h.Report(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("days=%s: status = %d, want 400", days, w.Code)
		}
	}
}

func TestReport_ReadFailure(t *testing.T) {
	h := NewReportHandler(&memoryLog{readErr: errors.New("backend down")}, "demo", zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	w := httptest.NewRecorder()
	h.Report(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
