package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RemoteFile is one document listed in a remote folder.
type RemoteFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// FileStore is the capability interface onto the remote document
// repository. The orchestrator depends on nothing else about it.
type FileStore interface {
	ListFolder(ctx context.Context, folderID string) ([]RemoteFile, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// HTTPFileStore talks to the document repository's REST API.
type HTTPFileStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPFileStore creates a client with the given base URL, bearer
// token, and request timeout.
func NewHTTPFileStore(baseURL, token string, timeout time.Duration) *HTTPFileStore {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPFileStore{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPFileStore) ListFolder(ctx context.Context, folderID string) ([]RemoteFile, error) {
	endpoint := fmt.Sprintf("%s/folders/%s/files", s.baseURL, url.PathEscape(folderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list folder %s returned status %d", folderID, resp.StatusCode)
	}

	var payload struct {
		Files []RemoteFile `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode folder listing: %w", err)
	}
	return payload.Files, nil
}

func (s *HTTPFileStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/files/%s/content", s.baseURL, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s returned status %d", fileID, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	return payload, nil
}

func (s *HTTPFileStore) authorize(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}
