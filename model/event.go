package model

// Event types appended to the shared queue log. Events are immutable facts;
// all derived state is a fold over the log ordered by id.
const (
	EventQueued    = "queued"
	EventPlaying   = "playing"
	EventPlayed    = "played"
	EventFailed    = "failed"
	EventSkip      = "skip"
	EventMetadata  = "metadata"
	EventCleared   = "cleared"
	EventReordered = "reordered"
)

// QueueEvent is one line of the shared event log. Ids are assigned by the
// writer, strictly increasing and never reused; a Ref of 0 means "no
// reference" (ids start at 1).
type QueueEvent struct {
	ID    uint64   `json:"id"`
	Type  string   `json:"type"`
	URL   string   `json:"url,omitempty"`
	Title string   `json:"title,omitempty"`
	By    string   `json:"by,omitempty"`
	Ref   uint64   `json:"ref,omitempty"`
	Order []uint64 `json:"order,omitempty"`
}
