package walkie

import (
	"errors"
	"fmt"
)

// Sentinel errors. Errors returned or published by this package wrap one of
// these; test with errors.Is.
var (
	// ErrConnectionFailure means the channel could not be established or
	// was lost.
	ErrConnectionFailure = errors.New("walkie: connection failure")

	// ErrConnectTimeout means the channel did not open within the connect
	// timeout. It also matches ErrConnectionFailure.
	ErrConnectTimeout = fmt.Errorf("%w: connect timeout", ErrConnectionFailure)

	// ErrPermissionDenied means the capture device refused to start.
	ErrPermissionDenied = errors.New("walkie: capture permission denied")

	// ErrNotDecodable means a buffer could not be decoded. It is absorbed
	// while a message is still streaming.
	ErrNotDecodable = errors.New("walkie: not decodable")

	// ErrUploadFailure means a durable copy could not be stored.
	ErrUploadFailure = errors.New("walkie: upload failed")

	// ErrProtocolViolation means the backend sent a message that does not
	// fit the current stream state.
	ErrProtocolViolation = errors.New("walkie: protocol violation")

	// ErrForwardFailure means recorded audio could not be sent over the
	// channel.
	ErrForwardFailure = errors.New("walkie: forward failed")

	// ErrServer wraps an error reported by the backend.
	ErrServer = errors.New("walkie: server error")

	// ErrFinalized means bytes were appended to a completed message.
	ErrFinalized = errors.New("walkie: message already complete")

	// ErrReplayInProgress means the message is already being played.
	ErrReplayInProgress = errors.New("walkie: replay already in progress")

	// ErrBusyRecording means playback was requested while recording.
	ErrBusyRecording = errors.New("walkie: busy recording")

	// ErrNotReady means the session has not reached the ready state.
	ErrNotReady = errors.New("walkie: session not ready")

	// ErrUnknownMessage means no message with the given id exists.
	ErrUnknownMessage = errors.New("walkie: unknown message")

	// ErrClosed means the session or controller has been closed.
	ErrClosed = errors.New("walkie: closed")
)
