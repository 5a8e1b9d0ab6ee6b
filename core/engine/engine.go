// Package engine runs the shared playback loop: pop the next queued track,
// resolve it to PCM, announce it on the event log and fan the audio out to the
// local speaker and the publish channel, reacting to skip requests from any
// participant along the way.
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"deckfm/eventlog"
	"deckfm/logger"
	"deckfm/model"
	"deckfm/notify"
	"deckfm/queue"
)

const (
	chunkDuration     = 10 * time.Millisecond
	emptyQueueSleep   = 500 * time.Millisecond
	skipCheckInterval = 2 * time.Second
	pcmBacklog        = 1024
	prefetchDepth     = 2
)

// TrackSource resolves track URLs to titles and PCM streams.
type TrackSource interface {
	FetchTitle(ctx context.Context, url string) (string, error)
	FetchStreaming(ctx context.Context, url string) (string, io.ReadCloser, error)
	Prefetch(ctx context.Context, urls []string)
}

// LocalOutput opens per-track local playback sessions.
type LocalOutput interface {
	Begin() (LocalSession, error)
}

// LocalSession consumes one track's volume-scaled samples.
type LocalSession interface {
	Push(samples []int16)
	Finish()
	Abort()
}

// Options configures an Engine.
type Options struct {
	Appender   *eventlog.Appender
	Source     TrackSource
	Notifier   notify.Notifier
	Output     LocalOutput
	SampleRate int
	Channels   int
	// Volume is the initial volume, 0 to 100.
	Volume        int
	LocalPlayback bool
	// Now overrides the clock used for skip-check scheduling.
	Now func() time.Time
}

// Engine is the playback loop plus its observable state. One engine instance
// drives one participant's playback; the shared truth stays in the event log.
type Engine struct {
	appender *eventlog.Appender
	source   TrackSource
	notifier notify.Notifier
	output   LocalOutput

	sampleRate int
	channels   int
	chunkBytes int
	now        func() time.Time

	mu        sync.Mutex
	pending   []model.QueuedTrack
	snapshot  model.SharedQueueSnapshot
	metaTried map[uint64]bool

	statusMu sync.Mutex
	status   model.Status

	volume        atomic.Int64
	active        atomic.Bool
	loopRunning   atomic.Bool
	localPlayback atomic.Bool
	prefetching   atomic.Bool
	playingID     atomic.Uint64
	localSkip     atomic.Uint64

	pcmOut chan []byte
	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an engine. It does not start the playback loop.
func New(opts Options) *Engine {
	e := &Engine{
		appender:   opts.Appender,
		source:     opts.Source,
		notifier:   opts.Notifier,
		output:     opts.Output,
		sampleRate: opts.SampleRate,
		channels:   opts.Channels,
		chunkBytes: opts.SampleRate / 100 * opts.Channels * 2,
		now:        opts.Now,
		metaTried:  make(map[uint64]bool),
		status:     model.Status{State: model.StateIdle},
		pcmOut:     make(chan []byte, pcmBacklog),
		kick:       make(chan struct{}, 1),
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.SetVolume(opts.Volume)
	e.localPlayback.Store(opts.LocalPlayback)
	return e
}

// Start launches the playback loop. Starting an already running engine is a
// no-op.
func (e *Engine) Start(ctx context.Context) {
	if !e.loopRunning.CompareAndSwap(false, true) {
		return
	}
	e.active.Store(true)
	e.localSkip.Store(0)
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.run(ctx)
	if e.notifier != nil {
		e.wg.Add(1)
		go e.consumeUpdates(ctx)
	}
}

// Stop deactivates the loop and waits for it to unwind. The track being
// played is concluded with a played event so other participants do not replay
// it.
func (e *Engine) Stop() {
	if !e.loopRunning.Load() {
		return
	}
	e.active.Store(false)
	e.cancel()
	e.wg.Wait()
	e.loopRunning.Store(false)
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()
	e.setStatus(model.StateIdle, "")
}

// QueueTrack appends a queued event for the URL and nudges the loop.
func (e *Engine) QueueTrack(ctx context.Context, url, by string) (uint64, error) {
	id, err := e.appender.AppendQueued(ctx, url, by)
	if err != nil {
		return 0, err
	}
	logger.Info("track queued", logger.String("url", url), logger.Uint64("id", id))
	e.nudge()
	return id, nil
}

// SkipTrack requests a skip of the queued id, or of the currently playing
// track when id is zero.
func (e *Engine) SkipTrack(ctx context.Context, id uint64) (uint64, error) {
	if id == 0 {
		id = e.playingID.Load()
	}
	if id == 0 {
		return 0, errors.New("nothing is playing")
	}
	if _, err := e.appender.AppendSkip(ctx, id); err != nil {
		return 0, err
	}
	if e.playingID.Load() == id {
		e.localSkip.Store(id)
	}
	return id, nil
}

// ClearQueue voids every pending entry. The playing track is skipped too: the
// clear watermark voids its queued event, so a shared skip is recorded before
// the clear and the local loop is signaled.
func (e *Engine) ClearQueue(ctx context.Context) error {
	playing := e.playingID.Load()
	if playing != 0 {
		if _, err := e.appender.AppendSkip(ctx, playing); err != nil {
			return err
		}
	}
	if _, err := e.appender.AppendCleared(ctx); err != nil {
		return err
	}
	if playing != 0 {
		e.localSkip.Store(playing)
	}
	e.nudge()
	return nil
}

// ReorderQueue records an explicit pending order.
func (e *Engine) ReorderQueue(ctx context.Context, order []uint64) error {
	if _, err := e.appender.AppendReordered(ctx, order); err != nil {
		return err
	}
	e.nudge()
	return nil
}

// Queue returns a copy of the local pending list.
func (e *Engine) Queue() []model.QueuedTrack {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.QueuedTrack(nil), e.pending...)
}

// Snapshot returns the latest projected queue view.
func (e *Engine) Snapshot() model.SharedQueueSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Status returns the coarse playback state.
func (e *Engine) Status() model.Status {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status
}

// Volume returns the current volume, 0 to 100.
func (e *Engine) Volume() int {
	return int(e.volume.Load())
}

// SetVolume clamps v to 0..100 and applies it to subsequent chunks.
func (e *Engine) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	e.volume.Store(int64(v))
}

// SetLocalPlayback toggles the local speaker for subsequent tracks.
func (e *Engine) SetLocalPlayback(enabled bool) {
	e.localPlayback.Store(enabled)
}

// PCMOutput is the volume-scaled chunk stream for the publish pipeline.
// Chunks are frame-aligned; the channel drops when the consumer falls behind.
func (e *Engine) PCMOutput() <-chan []byte {
	return e.pcmOut
}

func (e *Engine) nudge() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

func (e *Engine) setStatus(state model.EngineState, track string) {
	e.statusMu.Lock()
	e.status = model.Status{State: state, Track: track}
	e.statusMu.Unlock()
}

// refresh re-reads the log and replaces the local projection.
func (e *Engine) refresh(ctx context.Context) (*queue.State, error) {
	content, _, err := e.appender.Store().Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh queue: %w", err)
	}
	st := queue.Project(eventlog.Parse(content))
	e.mu.Lock()
	e.pending = append([]model.QueuedTrack(nil), st.Items...)
	e.snapshot = st.Snapshot()
	e.mu.Unlock()
	return st, nil
}

func (e *Engine) popNext() (model.QueuedTrack, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return model.QueuedTrack{}, false
	}
	track := e.pending[0]
	e.pending = e.pending[1:]
	return track, true
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	for e.active.Load() && ctx.Err() == nil {
		track, ok := e.popNext()
		if !ok {
			st, err := e.refresh(ctx)
			if err != nil {
				logger.Warn("queue refresh failed", logger.ErrorField(err))
			} else {
				e.maintain(ctx, st)
			}
			track, ok = e.popNext()
		}
		if !ok {
			e.setStatus(model.StateIdle, "")
			select {
			case <-ctx.Done():
				return
			case <-e.kick:
			case <-time.After(emptyQueueSleep):
			}
			continue
		}
		e.playTrack(ctx, track)
	}
}

func (e *Engine) playTrack(ctx context.Context, track model.QueuedTrack) {
	e.setStatus(model.StateLoading, track.Title)
	logger.Info("loading track",
		logger.String("url", track.URL),
		logger.Uint64("id", track.QueuedID))

	title, stream, err := e.source.FetchStreaming(ctx, track.URL)
	if err != nil {
		logger.Error("track resolution failed",
			logger.String("url", track.URL),
			logger.ErrorField(err))
		if track.QueuedID != 0 {
			if _, err := e.appender.AppendFailed(ctx, track.QueuedID); err != nil {
				logger.Warn("failed event not recorded", logger.ErrorField(err))
			}
		}
		return
	}
	defer stream.Close()

	// The playing event's id is the watermark telling fresh skip requests
	// from stale ones.
	var watermark uint64
	if track.QueuedID != 0 {
		watermark, err = e.appender.AppendPlaying(ctx, track.QueuedID, title, track.URL)
		if err != nil {
			logger.Warn("playing event not recorded", logger.ErrorField(err))
		}
	}

	e.localSkip.Store(0)
	e.playingID.Store(track.QueuedID)
	defer e.playingID.Store(0)
	e.setStatus(model.StatePlaying, title)
	logger.Info("playing track", logger.String("title", title))

	var session LocalSession
	if e.output != nil && e.localPlayback.Load() {
		session, err = e.output.Begin()
		if err != nil {
			logger.Warn("local playback unavailable", logger.ErrorField(err))
			session = nil
		}
	}

	skipped := e.streamChunks(ctx, stream, track.QueuedID, watermark, session)

	if session != nil {
		if skipped {
			session.Abort()
		} else {
			session.Finish()
		}
	}

	// Exactly one played event per attempt, whatever ended it. Shutdown must
	// not lose it, so the append outlives ctx cancellation.
	if track.QueuedID != 0 {
		if _, err := e.appender.AppendPlayed(context.WithoutCancel(ctx), track.QueuedID); err != nil {
			logger.Warn("played event not recorded", logger.ErrorField(err))
		}
	}
}

// streamChunks pumps PCM until EOF, a skip, or deactivation. It reports
// whether the track was cut short by a skip request.
func (e *Engine) streamChunks(ctx context.Context, stream io.Reader, queuedID, watermark uint64, session LocalSession) bool {
	buf := make([]byte, e.chunkBytes)
	lastCheck := e.now()

	// Without a local speaker providing backpressure, pace chunks to wall
	// clock so publishing stays real time.
	var pace *time.Ticker
	if session == nil {
		pace = time.NewTicker(chunkDuration)
		defer pace.Stop()
	}

	for {
		if !e.active.Load() || ctx.Err() != nil {
			return false
		}
		if queuedID != 0 && e.localSkip.Load() == queuedID {
			logger.Info("track skipped", logger.Uint64("id", queuedID))
			return true
		}
		// A zero watermark means the playing event was never recorded; a
		// remote skip cannot be told from a stale one, so only local
		// signals can end the track.
		if queuedID != 0 && watermark != 0 && e.now().Sub(lastCheck) >= skipCheckInterval {
			lastCheck = e.now()
			if e.remoteSkipRequested(ctx, queuedID, watermark) {
				return true
			}
		}

		n, err := io.ReadFull(stream, buf)
		if n > 0 {
			raw, samples := e.applyVolume(buf[:n])
			if session != nil {
				session.Push(samples)
			}
			select {
			case e.pcmOut <- raw:
			default:
			}
			if pace != nil {
				select {
				case <-pace.C:
				case <-ctx.Done():
					return false
				}
			}
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				logger.Warn("track stream ended abnormally", logger.ErrorField(err))
			}
			return false
		}
	}
}

func (e *Engine) remoteSkipRequested(ctx context.Context, queuedID, watermark uint64) bool {
	st, err := e.refresh(ctx)
	if err != nil {
		logger.Warn("skip check failed", logger.ErrorField(err))
		return false
	}
	if st.SkipRequestedSince(queuedID, watermark) {
		logger.Info("track skipped (shared request)", logger.Uint64("id", queuedID))
		return true
	}
	return false
}

// applyVolume scales interleaved s16le samples by the current volume and
// returns both the re-encoded bytes and the decoded samples.
func (e *Engine) applyVolume(raw []byte) ([]byte, []int16) {
	vol := int32(e.volume.Load())
	n := len(raw) / 2 * 2
	out := make([]byte, n)
	samples := make([]int16, n/2)
	for i := 0; i < n; i += 2 {
		s := int32(int16(binary.LittleEndian.Uint16(raw[i:]))) * vol / 100
		if s > math.MaxInt16 {
			s = math.MaxInt16
		}
		if s < math.MinInt16 {
			s = math.MinInt16
		}
		samples[i/2] = int16(s)
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(s)))
	}
	return out, samples
}

func (e *Engine) consumeUpdates(ctx context.Context) {
	defer e.wg.Done()
	updates := e.notifier.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			st, err := e.refresh(ctx)
			if err != nil {
				logger.Warn("queue refresh failed", logger.ErrorField(err))
				continue
			}
			e.nudge()
			e.maintain(ctx, st)
		}
	}
}

// maintain runs the background chores a fresh projection calls for: prefetch
// the next tracks into the cache and resolve missing titles.
func (e *Engine) maintain(ctx context.Context, st *queue.State) {
	var upcoming []string
	for i := 0; i < len(st.Items) && i < prefetchDepth; i++ {
		upcoming = append(upcoming, st.Items[i].URL)
	}
	if len(upcoming) > 0 && e.prefetching.CompareAndSwap(false, true) {
		go func() {
			defer e.prefetching.Store(false)
			e.source.Prefetch(ctx, upcoming)
		}()
	}

	for _, req := range st.NeedsMetadata {
		e.mu.Lock()
		tried := e.metaTried[req.ID]
		if !tried {
			e.metaTried[req.ID] = true
		}
		e.mu.Unlock()
		if tried {
			continue
		}
		go e.resolveMetadata(ctx, req)
	}
}

func (e *Engine) resolveMetadata(ctx context.Context, req queue.MetadataRequest) {
	title, err := e.source.FetchTitle(ctx, req.URL)
	if err != nil {
		logger.Warn("metadata fetch failed",
			logger.String("url", req.URL),
			logger.ErrorField(err))
		return
	}
	if _, err := e.appender.AppendMetadata(ctx, req.ID, title, req.URL); err != nil {
		logger.Warn("metadata event not recorded", logger.ErrorField(err))
	}
}
