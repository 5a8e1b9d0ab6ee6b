package source

import (
	"context"
	"io"
	"testing"

	"deckfm/cache"
)

func TestFetchStreamingCacheHit(t *testing.T) {
	audioCache := cache.New(t.TempDir(), 10)
	url := "https://youtu.be/cachedid"

	audioCache.PutTitle(url, "Cached Track")
	w := audioCache.NewEntryWriter(url)
	if _, err := w.Write([]byte("cached-pcm")); err != nil {
		t.Fatal(err)
	}
	w.Commit()

	// Binaries that must never be spawned on a cache hit.
	r := NewResolver("/nonexistent/yt-dlp", "/nonexistent/ffmpeg", 48000, 2, audioCache)

	title, stream, err := r.FetchStreaming(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	if title != "Cached Track" {
		t.Errorf("got title %q", title)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "cached-pcm" {
		t.Errorf("got pcm %q", data)
	}
}

func TestPrefetchSkipsCachedAndUncacheable(t *testing.T) {
	audioCache := cache.New(t.TempDir(), 10)
	url := "https://youtu.be/cachedid"

	audioCache.PutTitle(url, "Cached Track")
	w := audioCache.NewEntryWriter(url)
	if _, err := w.Write([]byte("pcm")); err != nil {
		t.Fatal(err)
	}
	w.Commit()

	r := NewResolver("/nonexistent/yt-dlp", "/nonexistent/ffmpeg", 48000, 2, audioCache)

	// Both urls must be rejected before any process would spawn: the first is
	// already cached, the second has no extractable id.
	r.Prefetch(context.Background(), []string{url, "https://example.com/stream.mp3"})

	if !audioCache.Has(url) {
		t.Error("cached entry disappeared")
	}
}
