package walkie

import "time"

// Event is something observable that happened in a Session. The concrete
// types are the structs in this file.
type Event interface {
	EventType() string
}

// Ready is emitted when the backend confirms the session is set up.
type Ready struct {
	SessionID string `json:"session_id"`
}

// AudioStart is emitted when an inbound message opens.
type AudioStart struct {
	MessageID string `json:"message_id"`
}

// AudioChunk is emitted for every chunk appended to an inbound message.
// Playable is true only on the chunk that made the message decodable for
// the first time.
type AudioChunk struct {
	MessageID  string `json:"message_id"`
	ChunkCount int    `json:"chunk_count"`
	Playable   bool   `json:"playable"`
}

// AudioComplete is emitted once an inbound message is finalized and its
// upload has settled. AudioURL is empty if the upload failed.
type AudioComplete struct {
	MessageID string        `json:"message_id"`
	Duration  time.Duration `json:"duration"`
	AudioURL  string        `json:"audio_url,omitempty"`
}

// ReplayStart is emitted when playback of a message begins.
type ReplayStart struct {
	MessageID string `json:"message_id"`
}

// ReplayComplete is emitted when playback of a message ends, whether it
// finished or was stopped.
type ReplayComplete struct {
	MessageID string `json:"message_id"`
}

// PlaybackStopped is emitted when an active playback is stopped on request.
type PlaybackStopped struct{}

// UserAudioComplete is emitted when a recording has been uploaded (or the
// upload has failed, leaving AudioURL empty).
type UserAudioComplete struct {
	MessageID string `json:"message_id"`
	AudioURL  string `json:"audio_url,omitempty"`
}

// ErrorEvent carries a failure. Err wraps one of the package's sentinel
// errors.
type ErrorEvent struct {
	Err error `json:"-"`
}

// StateChange is emitted on every session lifecycle transition.
type StateChange struct {
	State State `json:"state"`
}

// RecordingStateChange is emitted on every recorder transition.
type RecordingStateChange struct {
	State RecordState `json:"state"`
}

func (Ready) EventType() string                { return "ready" }
func (AudioStart) EventType() string           { return "audio_start" }
func (AudioChunk) EventType() string           { return "audio_chunk" }
func (AudioComplete) EventType() string        { return "audio_complete" }
func (ReplayStart) EventType() string          { return "replay_start" }
func (ReplayComplete) EventType() string       { return "replay_complete" }
func (PlaybackStopped) EventType() string      { return "playback_stopped" }
func (UserAudioComplete) EventType() string    { return "user_audio_complete" }
func (ErrorEvent) EventType() string           { return "error" }
func (StateChange) EventType() string          { return "state_change" }
func (RecordingStateChange) EventType() string { return "recording_state_change" }

// Error returns the message of the wrapped error.
func (e ErrorEvent) Error() string {
	if e.Err == nil {
		return "<nil>"
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e ErrorEvent) Unwrap() error {
	return e.Err
}
