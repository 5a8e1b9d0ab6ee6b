// Package notify delivers "the queue log changed" signals to the engine.
// Notification transport is a collaborator, not part of the core: the engine
// only consumes a channel of signals and degrades to polling when no notifier
// is configured.
package notify

import "encoding/json"

// Notifier emits a signal whenever the shared queue log may have changed.
// Signals are edge-triggered and may be coalesced.
type Notifier interface {
	Updates() <-chan struct{}
	Close() error
}

type pushCommit struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

type pushPayload struct {
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits    []pushCommit `json:"commits"`
	HeadCommit *pushCommit  `json:"head_commit"`
}

func (c *pushCommit) touches(path string) bool {
	for _, list := range [][]string{c.Added, c.Modified, c.Removed} {
		for _, p := range list {
			if p == path {
				return true
			}
		}
	}
	return false
}

// pushTouchesQueue reports whether a push payload from the named repository
// touched the queue log file.
func pushTouchesQueue(body []byte, repo, path string) bool {
	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	if payload.Repository.FullName != repo {
		return false
	}
	for i := range payload.Commits {
		if payload.Commits[i].touches(path) {
			return true
		}
	}
	return payload.HeadCommit != nil && payload.HeadCommit.touches(path)
}

// signal delivers a non-blocking edge trigger.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
