// Package player plays PCM chunks on the local audio device via the beep
// speaker. The speaker mixer runs on its own OS thread; the engine hands
// volume-scaled sample chunks over a bounded channel.
package player

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"deckfm/logger"
)

const (
	speakerBuffer = 100 * time.Millisecond
	drainTimeout  = 10 * time.Second
	chunkBacklog  = 64
)

// Speaker is the local playback device. The underlying output is opened
// lazily on the first track and shared across tracks.
type Speaker struct {
	sampleRate beep.SampleRate
	channels   int
	initOnce   sync.Once
	initErr    error
}

// NewSpeaker returns a speaker for the given stream format.
func NewSpeaker(sampleRate, channels int) *Speaker {
	return &Speaker{sampleRate: beep.SampleRate(sampleRate), channels: channels}
}

// Begin opens the device if needed and starts a playback session for one
// track. A device-open failure is returned to the caller, which disables
// local playback for that track only.
func (s *Speaker) Begin() (*Session, error) {
	s.initOnce.Do(func() {
		s.initErr = speaker.Init(s.sampleRate, s.sampleRate.N(speakerBuffer))
	})
	if s.initErr != nil {
		return nil, fmt.Errorf("open audio output: %w", s.initErr)
	}

	sess := &Session{
		channels: s.channels,
		ch:       make(chan []int16, chunkBacklog),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	speaker.Play(beep.Seq(sess, beep.Callback(func() {
		close(sess.done)
	})))
	return sess, nil
}

// Session streams one track's chunks to the mixer. It implements
// beep.Streamer; Stream runs on the speaker's audio goroutine while Push runs
// on the engine loop.
type Session struct {
	channels int
	ch       chan []int16
	quit     chan struct{}
	done     chan struct{}

	quitOnce   sync.Once
	finishOnce sync.Once

	// Audio-goroutine state.
	cur    []int16
	pos    int
	closed bool
}

// Push hands a chunk of interleaved samples to the mixer. It blocks only
// while the backlog is full and gives up once the session is aborted.
func (sess *Session) Push(samples []int16) {
	select {
	case sess.ch <- samples:
	case <-sess.quit:
	}
}

// Finish signals end of track and waits for the mixer to drain, with a
// bounded fallback so a wedged device cannot stall the playback loop.
func (sess *Session) Finish() {
	sess.finishOnce.Do(func() { close(sess.ch) })
	select {
	case <-sess.done:
	case <-time.After(drainTimeout):
		logger.Warn("local playback drain timed out")
		sess.Abort()
	}
}

// Abort stops the session without draining.
func (sess *Session) Abort() {
	sess.quitOnce.Do(func() { close(sess.quit) })
}

type sampleStatus int

const (
	sampleOK sampleStatus = iota
	sampleUnderrun
	sampleEOF
)

// Stream implements beep.Streamer.
func (sess *Session) Stream(out [][2]float64) (int, bool) {
	select {
	case <-sess.quit:
		return 0, false
	default:
	}

	for i := range out {
		l, r, status := sess.nextSample()
		switch status {
		case sampleOK:
			out[i] = [2]float64{l, r}
		case sampleUnderrun:
			// Keep the mixer fed with silence until the next chunk lands.
			out[i] = [2]float64{}
		case sampleEOF:
			if i == 0 {
				return 0, false
			}
			return i, true
		}
	}
	return len(out), true
}

// Err implements beep.Streamer.
func (sess *Session) Err() error {
	return nil
}

func (sess *Session) nextSample() (float64, float64, sampleStatus) {
	for sess.pos+sess.channels > len(sess.cur) {
		if sess.closed {
			return 0, 0, sampleEOF
		}
		select {
		case chunk, ok := <-sess.ch:
			if !ok {
				sess.closed = true
				continue
			}
			// Carry a partial sample split across chunk boundaries.
			rem := append([]int16(nil), sess.cur[sess.pos:]...)
			sess.cur = append(rem, chunk...)
			sess.pos = 0
		default:
			return 0, 0, sampleUnderrun
		}
	}

	l := float64(sess.cur[sess.pos]) / 32768
	r := l
	if sess.channels >= 2 {
		r = float64(sess.cur[sess.pos+1]) / 32768
	}
	sess.pos += sess.channels
	return l, r, sampleOK
}
