package eventlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file reads empty", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "events.ndjson"))
		content, version, err := store.Read(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if content != "" || version != "" {
			t.Errorf("got %q/%q, want empty", content, version)
		}
	})

	t.Run("write and read back", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "events.ndjson"))
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

	t.Run("stale version conflicts", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "events.ndjson"))
		if err := store.Write(ctx, "first\n", ""); err != nil {
			t.Fatal(err)
		}
		err := store.Write(ctx, "second\n", "")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("appender round trip", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "events.ndjson"))
		appender := NewAppender(store)

		for want := uint64(1); want <= 2; want++ {
			id, err := appender.AppendQueued(ctx, "https://youtu.be/aaa", "")
			if err != nil {
				t.Fatal(err)
			}
			if id != want {
				t.Fatalf("got id %d, want %d", id, want)
			}
		}

		content, _, err := store.Read(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if MaxID(content) != 2 {
			t.Errorf("unexpected log content: %q", content)
		}
	})
}
