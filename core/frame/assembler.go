// Package frame turns arbitrary-sized PCM chunks into the fixed 10 ms frames
// the real-time publish transport requires.
package frame

import (
	"context"
	"fmt"

	"deckfm/logger"
)

// Sink consumes exactly-sized 10 ms PCM frames.
type Sink interface {
	CaptureFrame(frame []byte) error
}

// Assembler buffers interleaved s16le PCM until a full frame is available and
// forwards whole frames to the sink. It never emits a short frame and never
// drops a byte: any remainder is retained for the next chunk.
type Assembler struct {
	sink      Sink
	frameSize int
	buf       []byte
	emitted   uint64
}

// NewAssembler returns an assembler for the given PCM format. The frame size
// is sampleRate/100 samples per channel (10 ms) at 2 bytes per sample.
func NewAssembler(sampleRate, channels int, sink Sink) *Assembler {
	frameSize := sampleRate / 100 * channels * 2
	return &Assembler{
		sink:      sink,
		frameSize: frameSize,
		buf:       make([]byte, 0, frameSize*4),
	}
}

// FrameSize returns the exact frame length in bytes.
func (a *Assembler) FrameSize() int {
	return a.frameSize
}

// Push appends a chunk and emits every complete frame it enables. Returns the
// first sink error, leaving unconsumed bytes buffered.
func (a *Assembler) Push(chunk []byte) error {
	a.buf = append(a.buf, chunk...)
	for len(a.buf) >= a.frameSize {
		if err := a.sink.CaptureFrame(a.buf[:a.frameSize]); err != nil {
			return fmt.Errorf("capture frame: %w", err)
		}
		a.buf = a.buf[a.frameSize:]
		a.emitted++
	}
	return nil
}

// Pending returns the number of buffered bytes awaiting a full frame.
func (a *Assembler) Pending() int {
	return len(a.buf)
}

// Run consumes PCM chunks until the channel closes, the context ends, or the
// sink fails. A trailing partial frame is discarded at shutdown; mid-stream
// nothing is ever dropped.
func (a *Assembler) Run(ctx context.Context, pcm <-chan []byte) error {
	defer func() {
		if len(a.buf) > 0 {
			logger.Debug("discarding trailing partial frame",
				logger.Int("bytes", len(a.buf)))
			a.buf = a.buf[:0]
		}
		logger.Info("frame assembler stopped", logger.Uint64("framesEmitted", a.emitted))
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-pcm:
			if !ok {
				return nil
			}
			if err := a.Push(chunk); err != nil {
				return err
			}
		}
	}
}
