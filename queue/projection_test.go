package queue

import (
	"reflect"
	"testing"

	"deckfm/model"
)

func queued(id uint64, url, by string) model.QueueEvent {
	return model.QueueEvent{ID: id, Type: model.EventQueued, URL: url, By: by}
}

func playing(id, ref uint64, title, url string) model.QueueEvent {
	return model.QueueEvent{ID: id, Type: model.EventPlaying, Ref: ref, Title: title, URL: url}
}

func refEvent(id uint64, eventType string, ref uint64) model.QueueEvent {
	return model.QueueEvent{ID: id, Type: eventType, Ref: ref}
}

func metadata(id, ref uint64, title string) model.QueueEvent {
	return model.QueueEvent{ID: id, Type: model.EventMetadata, Ref: ref, Title: title}
}

func TestProjectPending(t *testing.T) {
	events := []model.QueueEvent{
		queued(1, "https://youtu.be/aaa", "alice"),
		queued(2, "https://youtu.be/bbb", ""),
		metadata(3, 1, "First Track"),
	}
	st := Project(events)

	if len(st.Items) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(st.Items))
	}
	if st.Items[0].Title != "First Track" || st.Items[0].QueuedBy != "alice" {
		t.Errorf("unexpected first item: %+v", st.Items[0])
	}
	if st.Items[1].Title != model.TitlePending {
		t.Errorf("expected placeholder title, got %q", st.Items[1].Title)
	}
	if st.MaxID != 3 {
		t.Errorf("expected max id 3, got %d", st.MaxID)
	}
	if len(st.NeedsMetadata) != 1 || st.NeedsMetadata[0].ID != 2 {
		t.Errorf("unexpected metadata requests: %+v", st.NeedsMetadata)
	}
}

func TestProjectDeterminism(t *testing.T) {
	events := []model.QueueEvent{
		queued(1, "https://youtu.be/aaa", "alice"),
		queued(2, "https://youtu.be/bbb", "bob"),
		playing(3, 1, "A", "https://youtu.be/aaa"),
		refEvent(4, model.EventSkip, 1),
		refEvent(5, model.EventPlayed, 1),
		metadata(6, 2, "B"),
	}
	first := Project(events)
	second := Project(events)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("projection is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestProjectNowPlaying(t *testing.T) {
	t.Run("set while unresolved", func(t *testing.T) {
		st := Project([]model.QueueEvent{
			queued(1, "https://youtu.be/aaa", ""),
			playing(2, 1, "A", "https://youtu.be/aaa"),
		})
		if st.NowPlaying == nil || st.NowPlaying.QueuedID != 1 {
			t.Fatalf("expected track 1 playing, got %+v", st.NowPlaying)
		}
		if len(st.Items) != 0 {
			t.Errorf("playing track must not stay pending: %+v", st.Items)
		}
	})

	t.Run("cleared by played", func(t *testing.T) {
		st := Project([]model.QueueEvent{
			queued(1, "https://youtu.be/aaa", ""),
			playing(2, 1, "A", "https://youtu.be/aaa"),
			refEvent(3, model.EventPlayed, 1),
		})
		if st.NowPlaying != nil {
			t.Errorf("expected idle, got %+v", st.NowPlaying)
		}
	})

	t.Run("cleared by failed", func(t *testing.T) {
		st := Project([]model.QueueEvent{
			queued(1, "https://youtu.be/aaa", ""),
			playing(2, 1, "A", "https://youtu.be/aaa"),
			refEvent(3, model.EventFailed, 1),
		})
		if st.NowPlaying != nil {
			t.Errorf("expected idle, got %+v", st.NowPlaying)
		}
	})
}

func TestProjectHistory(t *testing.T) {
	st := Project([]model.QueueEvent{
		queued(1, "https://youtu.be/aaa", "alice"),
		queued(2, "https://youtu.be/bbb", ""),
		metadata(3, 1, "A"),
		metadata(4, 2, "B"),
		refEvent(5, model.EventPlayed, 1),
		refEvent(6, model.EventFailed, 2),
	})
	if len(st.History) != 2 {
		t.Fatalf("expected 2 history items, got %d", len(st.History))
	}
	if st.History[0].Title != "B" || st.History[1].Title != "A" {
		t.Errorf("history must be most recent first: %+v", st.History)
	}
	if len(st.Items) != 0 {
		t.Errorf("finished tracks must leave the pending list: %+v", st.Items)
	}
}

func TestProjectCleared(t *testing.T) {
	st := Project([]model.QueueEvent{
		queued(1, "https://youtu.be/aaa", ""),
		playing(2, 1, "A", "https://youtu.be/aaa"),
		queued(3, "https://youtu.be/bbb", ""),
		model.QueueEvent{ID: 4, Type: model.EventCleared},
		queued(5, "https://youtu.be/ccc", ""),
		// A stray reference to a voided entry must not resurrect it.
		refEvent(6, model.EventPlayed, 1),
	})
	if st.NowPlaying != nil {
		t.Errorf("clear must void the playing track, got %+v", st.NowPlaying)
	}
	if len(st.Items) != 1 || st.Items[0].QueuedID != 5 {
		t.Errorf("only entries after the clear survive: %+v", st.Items)
	}
	if len(st.History) != 0 {
		t.Errorf("cleared entries do not become history: %+v", st.History)
	}
}

func TestProjectReordered(t *testing.T) {
	events := []model.QueueEvent{
		queued(1, "https://youtu.be/aaa", ""),
		queued(2, "https://youtu.be/bbb", ""),
		queued(3, "https://youtu.be/ccc", ""),
		{ID: 4, Type: model.EventReordered, Order: []uint64{3, 1}},
	}

	t.Run("latest order wins", func(t *testing.T) {
		st := Project(events)
		got := []uint64{st.Items[0].QueuedID, st.Items[1].QueuedID, st.Items[2].QueuedID}
		// Id 2 is not named, so it sorts after the named ids.
		want := []uint64{3, 1, 2}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got order %v, want %v", got, want)
		}
	})

	t.Run("superseded by a later reorder", func(t *testing.T) {
		st := Project(append(events, model.QueueEvent{ID: 5, Type: model.EventReordered, Order: []uint64{2, 3, 1}}))
		got := []uint64{st.Items[0].QueuedID, st.Items[1].QueuedID, st.Items[2].QueuedID}
		want := []uint64{2, 3, 1}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got order %v, want %v", got, want)
		}
	})
}

func TestSkipRequestedSince(t *testing.T) {
	st := Project([]model.QueueEvent{
		queued(1, "https://youtu.be/aaa", ""),
		refEvent(2, model.EventSkip, 1),
		playing(3, 1, "A", "https://youtu.be/aaa"),
	})

	t.Run("stale skip ignored", func(t *testing.T) {
		if st.SkipRequestedSince(1, 3) {
			t.Error("skip before the playing event must not count")
		}
	})

	t.Run("fresh skip honored", func(t *testing.T) {
		st := Project([]model.QueueEvent{
			queued(1, "https://youtu.be/aaa", ""),
			playing(2, 1, "A", "https://youtu.be/aaa"),
			refEvent(3, model.EventSkip, 1),
		})
		if !st.SkipRequestedSince(1, 2) {
			t.Error("skip after the playing event must count")
		}
	})
}

func TestSnapshot(t *testing.T) {
	st := Project([]model.QueueEvent{
		queued(1, "https://youtu.be/aaa", "alice"),
		queued(2, "https://youtu.be/bbb", ""),
		metadata(3, 1, "A"),
		playing(4, 1, "A", "https://youtu.be/aaa"),
	})
	snap := st.Snapshot()
	if snap.NowPlaying == nil || snap.NowPlaying.Title != "A" {
		t.Fatalf("unexpected now playing: %+v", snap.NowPlaying)
	}
	if len(snap.Queue) != 1 || snap.Queue[0].ID != 2 {
		t.Fatalf("unexpected queue: %+v", snap.Queue)
	}
	if snap.Queue[0].Title != "" {
		t.Errorf("unresolved titles must be omitted, got %q", snap.Queue[0].Title)
	}
}
