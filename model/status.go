package model

// EngineState is the coarse playback engine state.
type EngineState string

const (
	StateIdle    EngineState = "idle"
	StateLoading EngineState = "loading"
	StatePlaying EngineState = "playing"
)

// Status is the engine status observed by the command surface. Track is only
// set while playing.
type Status struct {
	State EngineState `json:"state"`
	Track string      `json:"track,omitempty"`
}
