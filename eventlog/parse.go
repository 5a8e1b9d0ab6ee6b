package eventlog

import (
	"encoding/json"
	"strings"

	"deckfm/logger"
	"deckfm/model"
)

// Parse decodes the log content into events, one JSON object per line.
// Malformed lines are skipped so a single bad write cannot poison the whole
// log; blank lines are ignored.
func Parse(content string) []model.QueueEvent {
	var events []model.QueueEvent
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev model.QueueEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			logger.Warn("skipping malformed event line", logger.ErrorField(err))
			continue
		}
		events = append(events, ev)
	}
	return events
}

// MaxID returns the highest event id present in the content, 0 for an empty
// or unparseable log.
func MaxID(content string) uint64 {
	var max uint64
	for _, ev := range Parse(content) {
		if ev.ID > max {
			max = ev.ID
		}
	}
	return max
}
