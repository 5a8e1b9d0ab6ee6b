// Package cache stores decoded track audio on local disk so a track queued
// twice is fetched once. Each entry is a pair of artifacts keyed by a stable
// track identifier: <key>.pcm (raw interleaved s16le) and <key>.title. The
// cache is bounded: after every fetch pass the oldest entries beyond the
// configured capacity are evicted by modification time.
package cache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deckfm/logger"
)

// DefaultCapacity is the number of cached tracks kept when no explicit
// capacity is configured.
const DefaultCapacity = 10

// AudioCache is a bounded on-disk PCM cache.
type AudioCache struct {
	dir      string
	capacity int
}

// New returns a cache rooted at dir. The directory is created lazily on the
// first write.
func New(dir string, capacity int) *AudioCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &AudioCache{dir: dir, capacity: capacity}
}

// Key extracts a stable cache key from a track URL. URLs it cannot parse are
// reported as uncacheable (ok=false); callers then skip caching entirely.
func Key(url string) (string, bool) {
	// youtube.com/watch?v=ID
	if pos := strings.Index(url, "v="); pos >= 0 {
		id := url[pos+2:]
		if cut := strings.IndexAny(id, "&#?"); cut >= 0 {
			id = id[:cut]
		}
		if id != "" {
			return id, true
		}
	}
	// youtu.be/ID
	if _, rest, ok := strings.Cut(url, "youtu.be/"); ok {
		if cut := strings.IndexAny(rest, "&#?/"); cut >= 0 {
			rest = rest[:cut]
		}
		if rest != "" {
			return rest, true
		}
	}
	return "", false
}

func (c *AudioCache) pcmPath(key string) string {
	return filepath.Join(c.dir, key+".pcm")
}

func (c *AudioCache) titlePath(key string) string {
	return filepath.Join(c.dir, key+".title")
}

// Has reports whether a complete entry (PCM and title) exists for the URL.
func (c *AudioCache) Has(url string) bool {
	key, ok := Key(url)
	if !ok {
		return false
	}
	if _, err := os.Stat(c.pcmPath(key)); err != nil {
		return false
	}
	_, err := os.Stat(c.titlePath(key))
	return err == nil
}

// Open returns the cached title and an open reader over the cached PCM for
// the URL, or ok=false on a miss (or an uncacheable URL).
func (c *AudioCache) Open(url string) (string, *os.File, bool) {
	key, ok := Key(url)
	if !ok {
		return "", nil, false
	}
	titleBytes, err := os.ReadFile(c.titlePath(key))
	if err != nil {
		return "", nil, false
	}
	f, err := os.Open(c.pcmPath(key))
	if err != nil {
		return "", nil, false
	}
	return strings.TrimSpace(string(titleBytes)), f, true
}

// PutTitle persists the resolved title for the URL. Titles are written as
// soon as they are known, before the PCM finishes, so a concurrent reader can
// at least report what is being fetched. Best-effort.
func (c *AudioCache) PutTitle(url, title string) {
	key, ok := Key(url)
	if !ok {
		return
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		logger.Warn("cache dir create failed", logger.ErrorField(err))
		return
	}
	if err := os.WriteFile(c.titlePath(key), []byte(title), 0644); err != nil {
		logger.Warn("cache title write failed", logger.ErrorField(err))
	}
}

// NewEntryWriter opens a staging writer for the URL's PCM artifact. The entry
// only becomes visible to readers on Commit; Abandon (or a crash) leaves no
// partially valid entry behind. Returns nil for uncacheable URLs or when the
// staging file cannot be created — cache writes are best-effort.
func (c *AudioCache) NewEntryWriter(url string) *EntryWriter {
	key, ok := Key(url)
	if !ok {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		logger.Warn("cache dir create failed", logger.ErrorField(err))
		return nil
	}
	part := c.pcmPath(key) + ".part"
	f, err := os.Create(part)
	if err != nil {
		logger.Warn("cache staging create failed", logger.ErrorField(err))
		return nil
	}
	return &EntryWriter{file: f, partPath: part, finalPath: c.pcmPath(key)}
}

// EntryWriter stages a PCM artifact. Write errors disable the writer without
// disturbing the caller; the primary read path never depends on it.
type EntryWriter struct {
	file      *os.File
	partPath  string
	finalPath string
	broken    bool
}

// Write appends PCM bytes to the staging file. A failed write marks the
// writer broken and discards the staging file on Close.
func (w *EntryWriter) Write(p []byte) (int, error) {
	if w.broken {
		return len(p), nil
	}
	if _, err := w.file.Write(p); err != nil {
		logger.Warn("cache write failed, disabling cache for this track", logger.ErrorField(err))
		w.broken = true
	}
	return len(p), nil
}

// Commit publishes the staged artifact. No-op (cleanup only) when broken.
func (w *EntryWriter) Commit() {
	if err := w.file.Close(); err != nil || w.broken {
		os.Remove(w.partPath)
		return
	}
	if err := os.Rename(w.partPath, w.finalPath); err != nil {
		logger.Warn("cache commit failed", logger.ErrorField(err))
		os.Remove(w.partPath)
	}
}

// Abandon discards the staged artifact.
func (w *EntryWriter) Abandon() {
	w.file.Close()
	os.Remove(w.partPath)
}

// EnforceLimit evicts the least recently modified entries (PCM and title
// pairs) until at most the configured capacity remains. It is called between
// fetch passes, never while the current track's entry is being streamed.
func (c *AudioCache) EnforceLimit() {
	type entry struct {
		path  string
		mtime int64
	}
	var entries []entry
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".pcm") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, entry{
			path:  filepath.Join(c.dir, de.Name()),
			mtime: info.ModTime().UnixNano(),
		})
	}

	if len(entries) <= c.capacity {
		return
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime < entries[j].mtime })
	for _, e := range entries[:len(entries)-c.capacity] {
		logger.Debug("evicting cached track", logger.String("path", e.path))
		os.Remove(e.path)
		os.Remove(strings.TrimSuffix(e.path, ".pcm") + ".title")
	}
}
