package eventlog

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeContentsAPI emulates the repository contents endpoint: base64 content,
// blob shas as version tokens, 409 on stale shas.
type fakeContentsAPI struct {
	content string
	sha     string
	exists  bool
}

func (f *fakeContentsAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/someone/listening-room/contents/events.ndjson" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if !f.exists {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"content":  base64.StdEncoding.EncodeToString([]byte(f.content)),
				"encoding": "base64",
				"sha":      f.sha,
			})
		case http.MethodPut:
			var req struct {
				Content string `json:"content"`
				SHA     string `json:"sha"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.SHA != f.sha {
				http.Error(w, "sha mismatch", http.StatusConflict)
				return
			}
			raw, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.content = string(raw)
			f.sha = fmt.Sprintf("%x", sha1.Sum(raw))
			status := http.StatusOK
			if !f.exists {
				status = http.StatusCreated
			}
			f.exists = true
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{})
		default:
			http.Error(w, "method", http.StatusMethodNotAllowed)
		}
	}
}

func TestGitHubStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file reads empty", func(t *testing.T) {
		api := &fakeContentsAPI{}
		srv := httptest.NewServer(api.handler(t))
		defer srv.Close()

		store := NewGitHubStore(srv.URL, "someone/listening-room", "events.ndjson", "tok")
		content, version, err := store.Read(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if content != "" || version != "" {
			t.Errorf("got %q/%q, want empty", content, version)
		}
	})

	t.Run("write and read back", func(t *testing.T) {
		api := &fakeContentsAPI{}
		srv := httptest.NewServer(api.handler(t))
		defer srv.Close()

		store := NewGitHubStore(srv.URL, "someone/listening-room", "events.ndjson", "tok")
		if err := store.Write(ctx, "line\n", ""); err != nil {
			t.Fatal(err)
		}
		content, version, err := store.Read(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if content != "line\n" || version == "" {
			t.Errorf("got %q/%q", content, version)
		}
	})

	t.Run("stale sha conflicts", func(t *testing.T) {
		api := &fakeContentsAPI{}
		srv := httptest.NewServer(api.handler(t))
		defer srv.Close()

		store := NewGitHubStore(srv.URL, "someone/listening-room", "events.ndjson", "tok")
		if err := store.Write(ctx, "first\n", ""); err != nil {
			t.Fatal(err)
		}
		err := store.Write(ctx, "second\n", "stale-sha")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("appender round trip", func(t *testing.T) {
		api := &fakeContentsAPI{}
		srv := httptest.NewServer(api.handler(t))
		defer srv.Close()

		store := NewGitHubStore(srv.URL, "someone/listening-room", "events.ndjson", "tok")
		appender := NewAppender(store)
		for want := uint64(1); want <= 3; want++ {
			id, err := appender.AppendQueued(ctx, "https://youtu.be/aaa", "")
			if err != nil {
				t.Fatal(err)
			}
			if id != want {
				t.Fatalf("got id %d, want %d", id, want)
			}
		}
	})
}
