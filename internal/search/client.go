package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Engine is the capability surface the synchronizer needs from the
// search backend: collection lifecycle, bulk document writes, and alias
// management for atomic cutover.
type Engine interface {
	CreateCollection(ctx context.Context, name string) error
	DeleteCollection(ctx context.Context, name string) error
	UpsertDocuments(ctx context.Context, collection string, documents []map[string]any) error
	CurrentCollection(ctx context.Context, alias string) (string, error)
	RepointAlias(ctx context.Context, alias, collection string) error
}

// HTTPEngine talks to a Typesense-compatible search server.
type HTTPEngine struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPEngine creates a client for the given server and API key.
func NewHTTPEngine(baseURL, apiKey string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEngine{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

var productSchema = map[string]any{
	"fields": []map[string]any{
		{"name": "partNumber", "type": "string"},
		{"name": "description", "type": "string"},
		{"name": "brand", "type": "string", "optional": true},
		{"name": "dealerPrice", "type": "float", "optional": true},
		{"name": "retailPrice", "type": "float", "optional": true},
		{"name": "stockQuantity", "type": "int32", "optional": true},
		{"name": "supersededBy", "type": "string", "optional": true},
		{"name": "backorderedUnits", "type": "int32", "optional": true},
	},
}

func (e *HTTPEngine) CreateCollection(ctx context.Context, name string) error {
	schema := map[string]any{"name": name}
	for k, v := range productSchema {
		schema[k] = v
	}
	body, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal collection schema: %w", err)
	}
	return e.do(ctx, http.MethodPost, "/collections", body, nil)
}

func (e *HTTPEngine) DeleteCollection(ctx context.Context, name string) error {
	return e.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil, nil)
}

// UpsertDocuments sends documents through the JSONL bulk import endpoint
// in upsert mode.
func (e *HTTPEngine) UpsertDocuments(ctx context.Context, collection string, documents []map[string]any) error {
	if len(documents) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range documents {
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
	}

	endpoint := fmt.Sprintf("%s/collections/%s/documents/import?action=upsert", e.baseURL, url.PathEscape(collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("failed to build import request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	e.authorize(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("bulk import failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bulk import to %s returned status %d", collection, resp.StatusCode)
	}

	// The import endpoint answers 200 even when individual documents are
	// rejected; the outcome lives in the per-line JSONL results.
	var failed int
	var firstFailure string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var result struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(line, &result); err != nil {
			return fmt.Errorf("failed to decode import result line: %w", err)
		}
		if !result.Success {
			failed++
			if firstFailure == "" {
				firstFailure = result.Error
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read import results: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("bulk import to %s rejected %d of %d documents: %s", collection, failed, len(documents), firstFailure)
	}
	return nil
}

func (e *HTTPEngine) CurrentCollection(ctx context.Context, alias string) (string, error) {
	var payload struct {
		CollectionName string `json:"collection_name"`
	}
	err := e.do(ctx, http.MethodGet, "/aliases/"+url.PathEscape(alias), nil, &payload)
	if err != nil {
		return "", err
	}
	return payload.CollectionName, nil
}

func (e *HTTPEngine) RepointAlias(ctx context.Context, alias, collection string) error {
	body, err := json.Marshal(map[string]string{"collection_name": collection})
	if err != nil {
		return fmt.Errorf("failed to marshal alias body: %w", err)
	}
	return e.do(ctx, http.MethodPut, "/aliases/"+url.PathEscape(alias), body, nil)
}

func (e *HTTPEngine) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	e.authorize(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}

func (e *HTTPEngine) authorize(req *http.Request) {
	if e.apiKey != "" {
		req.Header.Set("X-TYPESENSE-API-KEY", e.apiKey)
	}
}
