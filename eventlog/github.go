package eventlog

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GitHubStore keeps the event log as a single file in a GitHub repository,
// using the contents API. The blob sha doubles as the version token: a PUT
// with a stale sha is rejected by GitHub, which is how concurrent writers are
// detected.
type GitHubStore struct {
	apiBase string
	repo    string // owner/name
	path    string
	token   string
	client  *http.Client
}

// NewGitHubStore returns a store for the given repo ("owner/name") and file
// path. apiBase is typically "https://api.github.com".
func NewGitHubStore(apiBase, repo, path, token string) *GitHubStore {
	return &GitHubStore{
		apiBase: strings.TrimRight(apiBase, "/"),
		repo:    repo,
		path:    path,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

func (s *GitHubStore) url() string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", s.apiBase, s.repo, s.path)
}

func (s *GitHubStore) authorize(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
}

// Read fetches the current log content and its blob sha. A 404 means the log
// has not been created yet and reads as empty.
func (s *GitHubStore) Read(ctx context.Context) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(), nil)
	if err != nil {
		return "", "", err
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("read queue log: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", fmt.Errorf("read queue log: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var cr contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", "", fmt.Errorf("decode queue log response: %w", err)
	}
	if cr.Encoding != "base64" {
		return "", "", fmt.Errorf("unexpected content encoding %q", cr.Encoding)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
	if err != nil {
		return "", "", fmt.Errorf("decode queue log content: %w", err)
	}
	return string(raw), cr.SHA, nil
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

// Write replaces the log content, conditioned on version (the blob sha from
// Read; empty when creating the file). Sha mismatches map to ErrConflict.
func (s *GitHubStore) Write(ctx context.Context, content, version string) error {
	body, err := json.Marshal(putRequest{
		Message: "Update shared queue",
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		SHA:     version,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("write queue log: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	// GitHub reports a stale sha as 409; 412 and 422 show up for the same
	// race on some deployments.
	case http.StatusConflict, http.StatusPreconditionFailed, http.StatusUnprocessableEntity:
		return ErrConflict
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("write queue log: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
}
