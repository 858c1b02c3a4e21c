package gcp

import (
	"context"
	"testing"
)

func TestParseGCSUri(t *testing.T) {
	tests := []struct {
		uri        string
		bucket     string
		object     string
		shouldFail bool
	}{
		{uri: "gs://pages/doc-1/pages.json", bucket: "pages", object: "doc-1/pages.json"},
		{uri: "gs://b/o", bucket: "b", object: "o"},
		{uri: "https://storage.googleapis.com/b/o", shouldFail: true},
		{uri: "gs://bucket-only", shouldFail: true},
		{uri: "gs://bucket/", shouldFail: true},
		{uri: "gs:///object", shouldFail: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSUri(tt.uri)
			if tt.shouldFail {
				if err == nil {
					t.Fatalf("expected error for %s", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.bucket || object != tt.object {
				t.Errorf("expected %s/%s, got %s/%s", tt.bucket, tt.object, bucket, object)
			}
			if GCSUri(bucket, object) != tt.uri {
				t.Errorf("GCSUri did not rebuild %s", tt.uri)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("AUDITFLOW_TEST_KEY", "set")
	if got := GetEnv("AUDITFLOW_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("expected set, got %s", got)
	}
	if got := GetEnv("AUDITFLOW_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestNewFirestoreClient_RequiresProject(t *testing.T) {
	if _, err := NewFirestoreClient(context.Background(), ""); err == nil {
		t.Error("expected an error without a project ID")
	}
}
