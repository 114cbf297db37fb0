package walkie

import (
	"mime"
	"strings"
)

// Inbound message types.
const (
	TypeSetupComplete = "setup_complete"
	TypeAudioStart    = "audio_start"
	TypeAudioResponse = "audio_response"
	TypeAudioEnd      = "audio_end"
	TypeError         = "error"
)

// TypeAudio is the outbound message type carrying a recording.
const TypeAudio = "audio"

// Inbound is a message received from the backend.
type Inbound struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	// Data is base64 audio on audio_response.
	Data string `json:"data,omitempty"`
	// Duration is in seconds on audio_end; zero when not reported.
	Duration float64 `json:"duration,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Outbound is a message sent to the backend.
type Outbound struct {
	Type     string `json:"type"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

var extensions = map[string]string{
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/wave":  "wav",
	"audio/webm":  "webm",
	"audio/m4a":   "m4a",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/mpeg":  "mp3",
	"audio/ogg":   "ogg",
}

// extensionFor returns the file extension used when storing audio of the
// given content type.
func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	if ext, ok := extensions[mt]; ok {
		return ext
	}
	return "bin"
}

// AudioPath returns the storage path of a message's durable copy.
func AudioPath(userID, topicID, messageID, ext string) string {
	return "audio/" + userID + "/" + topicID + "/" + messageID + "." + ext
}
