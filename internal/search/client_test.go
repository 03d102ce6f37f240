package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func importServer(t *testing.T, responseLines string) (*httptest.Server, *string) {
	t.Helper()
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/collections/") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(responseLines))
	}))
	t.Cleanup(server.Close)
	return server, &body
}

func TestUpsertDocumentsAllAccepted(t *testing.T) {
	server, body := importServer(t, "{\"success\":true}\n{\"success\":true}\n")
	engine := NewHTTPEngine(server.URL, "test-key", time.Second)

	docs := []map[string]any{
		{"id": "ABC123", "partNumber": "ABC123"},
		{"id": "DEF456", "partNumber": "DEF456"},
	}
	if err := engine.UpsertDocuments(context.Background(), "parts_20260828", docs); err != nil {
		t.Fatalf("UpsertDocuments returned error: %v", err)
	}
	if strings.Count(*body, "\n") != 2 {
		t.Errorf("expected 2 JSONL request lines, got %q", *body)
	}
}

func TestUpsertDocumentsRejectedLinesFailTheBatch(t *testing.T) {
	// The import endpoint reports per-document rejections inside a 200
	// response; those must surface as a batch error.
	server, _ := importServer(t,
		"{\"success\":true}\n{\"success\":false,\"error\":\"field partNumber must be a string\"}\n")
	engine := NewHTTPEngine(server.URL, "test-key", time.Second)

	docs := []map[string]any{
		{"id": "ABC123", "partNumber": "ABC123"},
		{"id": "DEF456", "partNumber": 42},
	}
	err := engine.UpsertDocuments(context.Background(), "parts_20260828", docs)
	if err == nil {
		t.Fatal("expected an error when a document is rejected")
	}
	if !strings.Contains(err.Error(), "rejected 1 of 2 documents") {
		t.Errorf("error should carry the rejection count, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "field partNumber must be a string") {
		t.Errorf("error should carry the server's reason, got %q", err.Error())
	}
}

func TestUpsertDocumentsAllRejected(t *testing.T) {
	server, _ := importServer(t,
		"{\"success\":false,\"error\":\"collection not found\"}\n")
	engine := NewHTTPEngine(server.URL, "", time.Second)

	err := engine.UpsertDocuments(context.Background(), "parts_missing", []map[string]any{{"id": "ABC123"}})
	if err == nil {
		t.Fatal("expected an error when every document is rejected")
	}
	if !strings.Contains(err.Error(), "rejected 1 of 1 documents") {
		t.Errorf("unexpected error: %q", err.Error())
	}
}

func TestUpsertDocumentsNon200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	engine := NewHTTPEngine(server.URL, "", time.Second)

	err := engine.UpsertDocuments(context.Background(), "parts_20260828", []map[string]any{{"id": "ABC123"}})
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected a status error, got %v", err)
	}
}
