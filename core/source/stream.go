package source

import (
	"io"
	"os/exec"

	"deckfm/cache"
	"deckfm/logger"
)

// liveStream reads PCM from the transcode pipeline's stdout, teeing every
// byte it hands out into a staged cache entry. The stream owns the pipeline
// processes and reaps them once the output is fully consumed.
type liveStream struct {
	pcm    io.ReadCloser
	writer *cache.EntryWriter // nil when the URL is uncacheable
	reap   []*exec.Cmd
	eof    bool
	closed bool
}

func (s *liveStream) Read(p []byte) (int, error) {
	n, err := s.pcm.Read(p)
	if n > 0 && s.writer != nil {
		// EntryWriter absorbs its own failures.
		s.writer.Write(p[:n])
	}
	if err == io.EOF {
		s.eof = true
	}
	return n, err
}

// Close releases the stream. If the pipeline has not finished, the remainder
// keeps draining into the cache entry in the background — a skipped track
// still ends up cached for next time. The external processes are never
// killed, only reaped.
func (s *liveStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.eof {
		if s.writer != nil {
			s.writer.Commit()
		}
		s.reapProcesses()
		return nil
	}

	go func() {
		var sink io.Writer = io.Discard
		if s.writer != nil {
			sink = s.writer
		}
		if _, err := io.Copy(sink, s.pcm); err != nil {
			logger.Debug("background drain ended", logger.ErrorField(err))
			if s.writer != nil {
				s.writer.Abandon()
			}
		} else if s.writer != nil {
			s.writer.Commit()
		}
		s.reapProcesses()
	}()
	return nil
}

func (s *liveStream) reapProcesses() {
	s.pcm.Close()
	for _, cmd := range s.reap {
		if err := cmd.Wait(); err != nil {
			logger.Debug("pipeline process exit", logger.ErrorField(err))
		}
	}
}
