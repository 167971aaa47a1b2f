package gcsarchive

import "testing"

func TestFilenameFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/uploads/p1/2025-03-01/not-a-uuid_bank.xlsx", "not-a-uuid_bank.xlsx"},
		{"gs://bucket/uploads/p1/2025-03-01/0f8fad5b-d9cb-469f-a165-70867728950e_bank.xlsx", "bank.xlsx"},
		{"gs://bucket/file.csv", "file.csv"},
		{"gs://bucket-only", "bucket-only"},
	}
	for _, tt := range tests {
		if got := FilenameFromURI(tt.uri); got != tt.want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestSplitURI(t *testing.T) {
	bucket, object, err := splitURI("gs://my-bucket/uploads/p1/file.xlsx")
	if err != nil {
		t.Fatalf("splitURI: %v", err)
	}
	if bucket != "my-bucket" || object != "uploads/p1/file.xlsx" {
		t.Errorf("splitURI = (%q, %q)", bucket, object)
	}

	if _, _, err := splitURI("https://example.com/file"); err == nil {
		t.Error("non-gs URI must be rejected")
	}
	if _, _, err := splitURI("gs://bucket-only"); err == nil {
		t.Error("URI without object path must be rejected")
	}
}
