// Package queue derives queue state from the shared event log. Project is a
// pure fold: no clock, no I/O, so the same event sequence always yields the
// same state on every participant.
package queue

import (
	"sort"

	"deckfm/model"
)

// MetadataRequest names a queued track whose title has not been resolved yet.
type MetadataRequest struct {
	ID  uint64
	URL string
}

// State is the result of folding the event log.
type State struct {
	// Items is the pending queue in playback order (id order, overridden by
	// the latest reordered event).
	Items []model.QueuedTrack
	// NowPlaying is set while a playing event's ref has no later
	// played/failed event.
	NowPlaying *model.NowPlaying
	// MaxID is the highest event id seen.
	MaxID uint64
	// SkipEvents maps a queued id to the id of the latest skip event
	// referencing it. Comparing against the playing event's id tells a fresh
	// skip from one that already took effect.
	SkipEvents map[uint64]uint64
	// NeedsMetadata lists pending tracks without a resolved title.
	NeedsMetadata []MetadataRequest
	// History holds finished tracks, most recent first.
	History []model.HistoryItem
}

// Project folds the ordered event sequence into derived state.
func Project(events []model.QueueEvent) *State {
	st := &State{SkipEvents: make(map[uint64]uint64)}

	type candidate struct {
		id  uint64
		url string
	}
	var queued []candidate
	played := make(map[uint64]bool)
	failed := make(map[uint64]bool)
	metadata := make(map[uint64]string)
	queuedBy := make(map[uint64]string)
	var clearedBelow uint64
	var latestOrder []uint64

	for _, ev := range events {
		if ev.ID > st.MaxID {
			st.MaxID = ev.ID
		}
		switch ev.Type {
		case model.EventQueued:
			if ev.URL == "" {
				continue
			}
			if ev.By != "" {
				queuedBy[ev.ID] = ev.By
			}
			queued = append(queued, candidate{id: ev.ID, url: ev.URL})
		case model.EventPlayed:
			if ev.Ref != 0 {
				played[ev.Ref] = true
			}
		case model.EventFailed:
			if ev.Ref != 0 {
				failed[ev.Ref] = true
			}
		case model.EventPlaying:
			if ev.Title != "" && ev.URL != "" {
				st.NowPlaying = &model.NowPlaying{Title: ev.Title, URL: ev.URL, QueuedID: ev.Ref}
			}
		case model.EventSkip:
			if ev.Ref != 0 {
				st.SkipEvents[ev.Ref] = ev.ID
			}
		case model.EventMetadata:
			if ev.Ref != 0 && ev.Title != "" {
				metadata[ev.Ref] = ev.Title
			}
		case model.EventCleared:
			// Watermark: everything at or below this id is void.
			if ev.ID > clearedBelow {
				clearedBelow = ev.ID
			}
			queued = nil
			played = make(map[uint64]bool)
			failed = make(map[uint64]bool)
			st.SkipEvents = make(map[uint64]uint64)
			metadata = make(map[uint64]string)
			queuedBy = make(map[uint64]string)
			st.NowPlaying = nil
			latestOrder = nil
		case model.EventReordered:
			if len(ev.Order) > 0 {
				latestOrder = ev.Order
			}
		}
	}

	sort.Slice(queued, func(i, j int) bool { return queued[i].id < queued[j].id })

	for _, c := range queued {
		if c.id <= clearedBelow {
			continue
		}
		if _, ok := metadata[c.id]; !ok {
			st.NeedsMetadata = append(st.NeedsMetadata, MetadataRequest{ID: c.id, URL: c.url})
		}
	}

	// History: finished items, most recent first.
	for i := len(queued) - 1; i >= 0; i-- {
		c := queued[i]
		if c.id <= clearedBelow {
			continue
		}
		if played[c.id] || failed[c.id] {
			st.History = append(st.History, model.HistoryItem{
				URL:      c.url,
				Title:    metadata[c.id],
				QueuedBy: queuedBy[c.id],
			})
		}
	}

	var playingID uint64
	if st.NowPlaying != nil {
		playingID = st.NowPlaying.QueuedID
	}
	for _, c := range queued {
		if c.id <= clearedBelow || played[c.id] || failed[c.id] {
			continue
		}
		if playingID != 0 && c.id == playingID {
			continue
		}
		title := metadata[c.id]
		if title == "" {
			title = model.TitlePending
		}
		st.Items = append(st.Items, model.QueuedTrack{
			URL:      c.url,
			Title:    title,
			QueuedID: c.id,
			QueuedBy: queuedBy[c.id],
		})
	}

	if len(latestOrder) > 0 {
		rank := make(map[uint64]int, len(latestOrder))
		for i, id := range latestOrder {
			rank[id] = i
		}
		sort.SliceStable(st.Items, func(i, j int) bool {
			ri, ok := rank[st.Items[i].QueuedID]
			if !ok {
				ri = len(latestOrder)
			}
			rj, ok := rank[st.Items[j].QueuedID]
			if !ok {
				rj = len(latestOrder)
			}
			return ri < rj
		})
	}

	if st.NowPlaying != nil {
		ref := st.NowPlaying.QueuedID
		if ref != 0 && (played[ref] || failed[ref] || ref <= clearedBelow) {
			st.NowPlaying = nil
		}
	}

	return st
}

// SkipRequestedSince reports whether a skip event for the queued id exists
// with an event id greater than sinceID. Skips at or below sinceID predate
// the current playback attempt and are ignored as stale.
func (st *State) SkipRequestedSince(queuedID, sinceID uint64) bool {
	eventID, ok := st.SkipEvents[queuedID]
	return ok && eventID > sinceID
}

// Snapshot builds the externally visible view of the projection.
func (st *State) Snapshot() model.SharedQueueSnapshot {
	snap := model.SharedQueueSnapshot{
		Queue:   make([]model.SharedQueueItem, 0, len(st.Items)),
		History: append([]model.HistoryItem(nil), st.History...),
	}
	for _, t := range st.Items {
		item := model.SharedQueueItem{
			ID:       t.QueuedID,
			URL:      t.URL,
			QueuedBy: t.QueuedBy,
		}
		if t.Title != model.TitlePending {
			item.Title = t.Title
		}
		snap.Queue = append(snap.Queue, item)
	}
	if st.NowPlaying != nil {
		now := *st.NowPlaying
		snap.NowPlaying = &now
	}
	return snap
}
