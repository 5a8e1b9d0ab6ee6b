package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"deckfm/model"
)

// Appender implements the conflict-safe append protocol: read the log and its
// version token, assign the next id, append one line and write back
// conditioned on the token. A version conflict is retried exactly once from a
// fresh read; a second conflict surfaces to the caller. Events are never
// retried beyond that.
type Appender struct {
	store Store
}

// NewAppender returns an Appender over the given store.
func NewAppender(store Store) *Appender {
	return &Appender{store: store}
}

// Store exposes the underlying store for read-only projection refreshes.
func (a *Appender) Store() Store {
	return a.store
}

// Append runs the read-modify-write cycle, calling build with the id the new
// event will carry. It returns the assigned id.
func (a *Appender) Append(ctx context.Context, build func(id uint64) model.QueueEvent) (uint64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		content, version, err := a.store.Read(ctx)
		if err != nil {
			return 0, fmt.Errorf("append: %w", err)
		}

		nextID := MaxID(content) + 1
		line, err := json.Marshal(build(nextID))
		if err != nil {
			return 0, fmt.Errorf("append: %w", err)
		}

		var sb strings.Builder
		sb.WriteString(content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			sb.WriteByte('\n')
		}
		sb.Write(line)
		sb.WriteByte('\n')

		err = a.store.Write(ctx, sb.String(), version)
		if err == nil {
			return nextID, nil
		}
		if errors.Is(err, ErrConflict) && attempt == 0 {
			continue
		}
		return 0, fmt.Errorf("append: %w", err)
	}
	return 0, fmt.Errorf("append: %w", ErrConflict)
}

// AppendQueued records a new track added to the shared queue.
func (a *Appender) AppendQueued(ctx context.Context, url, by string) (uint64, error) {
	return a.Append(ctx, func(id uint64) model.QueueEvent {
		return model.QueueEvent{ID: id, Type: model.EventQueued, URL: url, By: by}
	})
}

// AppendPlaying records that playback of the referenced queued track started.
// The returned id is the skip-detection watermark for that track.
func (a *Appender) AppendPlaying(ctx context.Context, ref uint64, title, url string) (uint64, error) {
	return a.Append(ctx, func(id uint64) model.QueueEvent {
		return model.QueueEvent{ID: id, Type: model.EventPlaying, Ref: ref, Title: title, URL: url}
	})
}

// AppendPlayed marks the referenced track's playback attempt as concluded.
func (a *Appender) AppendPlayed(ctx context.Context, ref uint64) (uint64, error) {
	return a.appendRef(ctx, model.EventPlayed, ref)
}

// AppendFailed records that the referenced track could not be resolved.
func (a *Appender) AppendFailed(ctx context.Context, ref uint64) (uint64, error) {
	return a.appendRef(ctx, model.EventFailed, ref)
}

// AppendSkip requests that playback of the referenced track be skipped.
func (a *Appender) AppendSkip(ctx context.Context, ref uint64) (uint64, error) {
	return a.appendRef(ctx, model.EventSkip, ref)
}

// AppendMetadata attaches a resolved title to the referenced queued track.
func (a *Appender) AppendMetadata(ctx context.Context, ref uint64, title, url string) (uint64, error) {
	return a.Append(ctx, func(id uint64) model.QueueEvent {
		return model.QueueEvent{ID: id, Type: model.EventMetadata, Ref: ref, Title: title, URL: url}
	})
}

// AppendCleared writes the clear watermark: every id at or below it is void.
func (a *Appender) AppendCleared(ctx context.Context) (uint64, error) {
	return a.Append(ctx, func(id uint64) model.QueueEvent {
		return model.QueueEvent{ID: id, Type: model.EventCleared}
	})
}

// AppendReordered records an explicit ordering of the pending queue.
func (a *Appender) AppendReordered(ctx context.Context, order []uint64) (uint64, error) {
	return a.Append(ctx, func(id uint64) model.QueueEvent {
		return model.QueueEvent{ID: id, Type: model.EventReordered, Order: order}
	})
}

func (a *Appender) appendRef(ctx context.Context, eventType string, ref uint64) (uint64, error) {
	return a.Append(ctx, func(id uint64) model.QueueEvent {
		return model.QueueEvent{ID: id, Type: eventType, Ref: ref}
	})
}
