package walkie

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// recorder is the recording pipeline state of a Session.
type recorder struct {
	state RecordState
	timer *time.Timer
	gen   int
}

func (s *Session) setRecordStateLocked(st RecordState) {
	if s.rec.state == st {
		return
	}
	s.rec.state = st
	s.emit(RecordingStateChange{State: st})
}

// StartRecording starts capturing microphone audio. The session must be
// Ready. Anything playing is stopped first.
func (s *Session) StartRecording(ctx context.Context) error {
	s.gate.Lock()
	s.mu.Lock()
	var err error
	switch {
	case s.closed:
		err = fmt.Errorf("start recording: %w", ErrClosed)
	case s.state != StateReady:
		err = fmt.Errorf("start recording in state %s: %w", s.state, ErrNotReady)
	case s.rec.state != RecordIdle:
		err = fmt.Errorf("start recording: already %s: %w", s.rec.state, ErrBusyRecording)
	case s.cfg.capture == nil:
		err = fmt.Errorf("start recording: no capture device: %w", ErrPermissionDenied)
	}
	if err != nil {
		s.mu.Unlock()
		s.gate.Unlock()
		s.publish(err)
		return err
	}
	s.setRecordStateLocked(RecordArmed)
	s.mu.Unlock()

	s.playback.Stop()
	s.gate.Unlock()

	if err := s.cfg.capture.Start(ctx); err != nil {
		s.mu.Lock()
		s.setRecordStateLocked(RecordIdle)
		s.mu.Unlock()
		s.cfg.metrics.recording("denied")
		if !errors.Is(err, ErrPermissionDenied) {
			err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		s.publish(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.rec.state != RecordArmed {
		return fmt.Errorf("start recording: %w", ErrClosed)
	}
	s.setRecordStateLocked(RecordCapturing)
	s.rec.gen++
	if d := s.cfg.maxRecordingDuration; d > 0 {
		gen := s.rec.gen
		s.rec.timer = time.AfterFunc(d, func() {
			s.mu.Lock()
			current := s.rec.gen == gen && s.rec.state == RecordCapturing
			s.mu.Unlock()
			if !current {
				return
			}
			s.cfg.logger.InfoPrintf("recording reached %v, stopping", d)
			s.StopRecording(context.Background())
		})
	}
	return nil
}

// StopRecording ends the capture and ships the recording: it uploads the
// audio, emits UserAudioComplete, forwards it over the channel and adds it
// to the session as an outbound message.
//
// An empty recording produces nothing and returns (nil, nil), as does
// calling StopRecording when not recording. A failed upload is reported
// but not returned; the message is then kept without a URL. A failed
// forward is returned.
func (s *Session) StopRecording(ctx context.Context) (*MessageInfo, error) {
	s.mu.Lock()
	if s.rec.state != RecordCapturing {
		s.mu.Unlock()
		return nil, nil
	}
	s.setRecordStateLocked(RecordFinalizing)
	if s.rec.timer != nil {
		s.rec.timer.Stop()
		s.rec.timer = nil
	}
	req, ch := s.req, s.ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.setRecordStateLocked(RecordIdle)
		s.mu.Unlock()
	}()

	blob, err := s.cfg.capture.Stop(ctx)
	if err != nil {
		s.cfg.metrics.recording("failed")
		err = fmt.Errorf("stop recording: %w", err)
		s.publish(err)
		return nil, err
	}
	if blob == nil || len(blob.Data) == 0 {
		s.cfg.metrics.recording("empty")
		s.cfg.logger.DebugPrintf("empty recording discarded")
		return nil, nil
	}

	id := "user-" + uuid.NewString()
	ext := extensionFor(blob.MIMEType)
	url, err := s.cfg.blobs.Upload(ctx, AudioPath(req.UserID, req.TopicID, id, ext), blob.Data, blob.MIMEType)
	s.cfg.metrics.upload(Outbound, err == nil)
	if err != nil {
		s.publish(fmt.Errorf("%w: %s: %w", ErrUploadFailure, id, err))
		url = ""
	}
	s.emit(UserAudioComplete{MessageID: id, AudioURL: url})

	var fwdErr error
	if ch == nil {
		fwdErr = fmt.Errorf("%w: %s: no channel", ErrForwardFailure, id)
	} else if err := ch.Send(ctx, &Outbound{
		Type:     TypeAudio,
		Data:     base64.StdEncoding.EncodeToString(blob.Data),
		MIMEType: blob.MIMEType,
	}); err != nil {
		fwdErr = fmt.Errorf("%w: %s: %w", ErrForwardFailure, id, err)
	}
	if fwdErr != nil {
		s.cfg.metrics.recording("failed")
		s.publish(fwdErr)
	} else {
		s.cfg.metrics.recording("sent")
	}

	duration := blob.Duration
	if duration == 0 {
		if clip, err := s.cfg.decoder.Decode(ctx, blob.Data); err == nil {
			duration = clip.Duration()
		}
	}
	if err := s.acc.Put(id, blob.Data); err != nil {
		s.publish(err)
	}
	s.reg.add(&message{
		id:        id,
		direction: Outbound,
		duration:  duration,
		audioURL:  url,
		createdAt: time.Now(),
	})
	s.record(id)

	info, _ := s.Message(id)
	return &info, fwdErr
}
