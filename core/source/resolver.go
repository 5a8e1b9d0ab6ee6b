// Package source resolves track URLs to streaming PCM. A resolution consults
// the audio cache first; on a miss it spawns the external fetch/transcode
// pipeline (yt-dlp piped into ffmpeg) and tees the PCM into a new cache entry
// while the caller consumes it. The tee is a pure side-effect sink: its
// failures never disturb the primary read path.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"deckfm/cache"
	"deckfm/logger"
)

// Resolver fetches track audio as raw interleaved s16le PCM at a fixed
// sample rate and channel count.
type Resolver struct {
	ytdlpPath  string
	ffmpegPath string
	sampleRate int
	channels   int
	cache      *cache.AudioCache
}

// NewResolver returns a resolver producing PCM in the given format, backed by
// the given cache.
func NewResolver(ytdlpPath, ffmpegPath string, sampleRate, channels int, audioCache *cache.AudioCache) *Resolver {
	return &Resolver{
		ytdlpPath:  ytdlpPath,
		ffmpegPath: ffmpegPath,
		sampleRate: sampleRate,
		channels:   channels,
		cache:      audioCache,
	}
}

// FetchTitle resolves a best-effort title for the URL.
func (r *Resolver) FetchTitle(ctx context.Context, url string) (string, error) {
	cmd := exec.CommandContext(ctx, r.ytdlpPath, "--get-title", "--no-warnings", url)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("fetch title for %s: %w: %s", url, err, strings.TrimSpace(stderr.String()))
	}
	title := strings.TrimSpace(out.String())
	if title == "" {
		return "", fmt.Errorf("fetch title for %s: empty output", url)
	}
	return title, nil
}

// FetchStreaming resolves the URL to a title and a PCM byte stream. A cache
// hit streams from disk with no external process; a miss streams from the
// live pipeline, teeing into the cache as bytes are consumed. Closing the
// returned reader early (skip) does not kill the pipeline: the remainder is
// drained into the cache in the background so the next play is a hit.
func (r *Resolver) FetchStreaming(ctx context.Context, url string) (string, io.ReadCloser, error) {
	if title, f, ok := r.cache.Open(url); ok {
		logger.Debug("cache hit", logger.String("url", url), logger.String("title", title))
		return title, f, nil
	}

	title, err := r.FetchTitle(ctx, url)
	if err != nil {
		logger.Warn("title fetch failed", logger.String("url", url), logger.ErrorField(err))
		title = "Unknown"
	} else {
		// Persist the title right away so concurrent readers can report it
		// before the PCM lands.
		r.cache.PutTitle(url, title)
	}

	stream, err := r.startPipeline(url)
	if err != nil {
		return "", nil, err
	}
	return title, stream, nil
}

// Prefetch downloads uncached upcoming tracks fully into the cache, then
// enforces the eviction bound. Failures are logged and skipped; prefetch is
// never on the playback path.
func (r *Resolver) Prefetch(ctx context.Context, urls []string) {
	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		if r.cache.Has(url) {
			continue
		}
		key, cacheable := cache.Key(url)
		if !cacheable {
			continue
		}
		logger.Info("prefetching track", logger.String("url", url), logger.String("key", key))
		if err := r.prefetchOne(ctx, url); err != nil {
			logger.Warn("prefetch failed", logger.String("url", url), logger.ErrorField(err))
		}
	}
	r.cache.EnforceLimit()
}

func (r *Resolver) prefetchOne(ctx context.Context, url string) error {
	title, stream, err := r.FetchStreaming(ctx, url)
	if err != nil {
		return err
	}
	// Draining the stream drives the tee, which fills the cache entry.
	n, err := io.Copy(io.Discard, stream)
	stream.Close()
	if err != nil {
		return err
	}
	logger.Debug("prefetched track",
		logger.String("title", title),
		logger.Int64("bytes", n))
	return nil
}

// startPipeline spawns yt-dlp | ffmpeg producing PCM on stdout.
func (r *Resolver) startPipeline(url string) (*liveStream, error) {
	fetch := exec.Command(r.ytdlpPath,
		"-f", "bestaudio",
		"-o", "-",
		"--no-warnings",
		"--no-progress",
		url,
	)
	fetchOut, err := fetch.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("resolver pipe: %w", err)
	}

	transcode := exec.Command(r.ffmpegPath,
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(r.sampleRate),
		"-ac", strconv.Itoa(r.channels),
		"pipe:1",
	)
	transcode.Stdin = fetchOut
	pcmOut, err := transcode.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("resolver pipe: %w", err)
	}

	if err := fetch.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.ytdlpPath, err)
	}
	if err := transcode.Start(); err != nil {
		fetch.Process.Kill()
		fetch.Wait()
		return nil, fmt.Errorf("start %s: %w", r.ffmpegPath, err)
	}

	return &liveStream{
		pcm:    pcmOut,
		writer: r.cache.NewEntryWriter(url),
		reap:   []*exec.Cmd{transcode, fetch},
	}, nil
}
