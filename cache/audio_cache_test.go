package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
		ok   bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"watch url with extra params", "https://www.youtube.com/watch?v=abc123&t=42s", "abc123", true},
		{"short url", "https://youtu.be/abc123", "abc123", true},
		{"short url with query", "https://youtu.be/abc123?si=xyz", "abc123", true},
		{"no video id", "https://example.com/stream.mp3", "", false},
		{"empty id", "https://www.youtube.com/watch?v=", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := Key(tt.url)
			if key != tt.key || ok != tt.ok {
				t.Errorf("Key(%q) = %q, %v; want %q, %v", tt.url, key, ok, tt.key, tt.ok)
			}
		})
	}
}

func TestEntryRoundTrip(t *testing.T) {
	c := New(t.TempDir(), 10)
	url := "https://youtu.be/abc123"

	if c.Has(url) {
		t.Fatal("empty cache reports a hit")
	}

	c.PutTitle(url, "Some Track")
	w := c.NewEntryWriter(url)
	if w == nil {
		t.Fatal("expected a staging writer")
	}
	if _, err := w.Write([]byte("pcm-bytes")); err != nil {
		t.Fatal(err)
	}

	// Staged entries are invisible until committed.
	if c.Has(url) {
		t.Fatal("uncommitted entry visible")
	}
	w.Commit()

	if !c.Has(url) {
		t.Fatal("committed entry not visible")
	}
	title, f, ok := c.Open(url)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	defer f.Close()
	if title != "Some Track" {
		t.Errorf("got title %q", title)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "pcm-bytes" {
		t.Errorf("got pcm %q", data)
	}
}

func TestAbandonLeavesNoEntry(t *testing.T) {
	c := New(t.TempDir(), 10)
	url := "https://youtu.be/abc123"

	w := c.NewEntryWriter(url)
	if _, err := w.Write([]byte("partial")); err != nil {
		t.Fatal(err)
	}
	w.Abandon()

	if c.Has(url) {
		t.Error("abandoned entry visible")
	}
	if _, err := os.Stat(filepath.Join(c.dir, "abc123.pcm.part")); !os.IsNotExist(err) {
		t.Error("staging file left behind")
	}
}

func TestUncacheableURL(t *testing.T) {
	c := New(t.TempDir(), 10)
	url := "https://example.com/stream.mp3"

	if w := c.NewEntryWriter(url); w != nil {
		t.Error("expected no writer for an uncacheable url")
	}
	c.PutTitle(url, "ignored")
	if _, _, ok := c.Open(url); ok {
		t.Error("uncacheable url reported a hit")
	}
}

func TestEnforceLimit(t *testing.T) {
	c := New(t.TempDir(), 10)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		url := fmt.Sprintf("https://youtu.be/track%03d", i)
		c.PutTitle(url, fmt.Sprintf("Track %d", i))
		w := c.NewEntryWriter(url)
		if _, err := w.Write([]byte("pcm")); err != nil {
			t.Fatal(err)
		}
		w.Commit()

		key, _ := Key(url)
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(c.pcmPath(key), mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	c.EnforceLimit()

	for i := 0; i < 12; i++ {
		url := fmt.Sprintf("https://youtu.be/track%03d", i)
		has := c.Has(url)
		wantKept := i >= 2
		if has != wantKept {
			t.Errorf("entry %d: kept=%v, want %v", i, has, wantKept)
		}
	}
}
