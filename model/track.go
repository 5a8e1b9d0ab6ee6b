package model

// TitlePending is the placeholder title for tracks whose metadata has not
// been resolved yet.
const TitlePending = "Loading..."

// QueuedTrack is a pending queue entry derived from the event log. It is
// rebuilt on every projection refresh, never mutated in place. QueuedID is 0
// for purely local (non-shared) queues.
type QueuedTrack struct {
	URL      string
	Title    string
	QueuedID uint64
	QueuedBy string
}

// NowPlaying describes the currently playing shared track.
type NowPlaying struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	QueuedID uint64 `json:"queued_id,omitempty"`
}

// SharedQueueItem is one pending entry of the externally visible snapshot.
type SharedQueueItem struct {
	ID       uint64 `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	QueuedBy string `json:"queued_by,omitempty"`
}

// HistoryItem is one finished (played or failed) entry, most recent first.
type HistoryItem struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	QueuedBy string `json:"queued_by,omitempty"`
}

// SharedQueueSnapshot is the projection exposed to the command surface.
type SharedQueueSnapshot struct {
	Queue      []SharedQueueItem `json:"queue"`
	NowPlaying *NowPlaying       `json:"now_playing,omitempty"`
	History    []HistoryItem     `json:"history"`
}
