package assets

import (
	"testing"
)

func TestObjectURI(t *testing.T) {
	got := ObjectURI("expenses-bucket", "receipts/abc_receipt.jpg")
	want := "gs://expenses-bucket/receipts/abc_receipt.jpg"
	if got != want {
		t.Errorf("ObjectURI = %q, want %q", got, want)
	}
}

func TestFilenameFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/receipts/abc_receipt.jpg", "abc_receipt.jpg"},
		{"gs://bucket/file.png", "file.png"},
		{"gs://bucket-only", "bucket-only"},
	}

	for _, tt := range tests {
		if got := FilenameFromURI(tt.uri); got != tt.want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
