package eventlog

import (
	"testing"

	"deckfm/model"
)

func TestParse(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		if events := Parse(""); len(events) != 0 {
			t.Errorf("expected no events, got %d", len(events))
		}
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		content := `{"id":1,"type":"queued","url":"https://youtu.be/aaa"}
not json

{"id":2,"type":"skip","ref":1}
`
		events := Parse(content)
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Type != model.EventQueued || events[1].Ref != 1 {
			t.Errorf("unexpected events: %+v", events)
		}
	})
}

func TestMaxID(t *testing.T) {
	if got := MaxID(""); got != 0 {
		t.Errorf("empty log: got %d, want 0", got)
	}
	content := `{"id":3,"type":"queued","url":"u"}
{"id":7,"type":"skip","ref":3}
{"id":5,"type":"played","ref":3}
`
	if got := MaxID(content); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}
