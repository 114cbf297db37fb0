package walkie

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/groovydhruv/power-ups/pkg/audio/wav"
)

// handle reacts to one inbound message. It runs on the read loop, so
// messages are handled one at a time in channel order.
func (s *Session) handle(msg *Inbound) {
	switch msg.Type {
	case TypeSetupComplete:
		s.onSetupComplete()
	case TypeAudioStart:
		s.onAudioStart(msg)
	case TypeAudioResponse:
		s.onAudioChunk(msg)
	case TypeAudioEnd:
		s.onAudioEnd(msg)
	case TypeError:
		text := msg.Error
		if text == "" {
			text = "unspecified error"
		}
		s.publish(fmt.Errorf("%w: %s", ErrServer, text))
	default:
		s.cfg.logger.DebugPrintf("ignoring message type %q", msg.Type)
	}
}

func (s *Session) violation(format string, args ...any) {
	s.cfg.metrics.protocolError()
	s.publish(fmt.Errorf("%w: "+format, append([]any{ErrProtocolViolation}, args...)...))
}

func (s *Session) onSetupComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		s.cfg.logger.DebugPrintf("setup_complete in state %s", s.state)
		return
	}
	s.setStateLocked(StateReady)
	s.emit(Ready{SessionID: s.grant.SessionID})
}

func (s *Session) onAudioStart(msg *Inbound) {
	s.mu.Lock()
	if s.receiving != "" {
		cur := s.receiving
		s.mu.Unlock()
		s.violation("audio_start %q while %q is receiving", msg.MessageID, cur)
		return
	}
	id := msg.MessageID
	if id == "" {
		id = "msg-" + uuid.NewString()
	}
	if err := s.acc.Open(id); err != nil {
		s.mu.Unlock()
		s.cfg.metrics.protocolError()
		s.publish(err)
		return
	}
	s.reg.add(&message{id: id, direction: Inbound, createdAt: time.Now()})
	s.receiving = id
	s.emit(AudioStart{MessageID: id})
	s.mu.Unlock()

	s.record(id)
}

// current returns the id of the receiving message that msg refers to.
func (s *Session) current(msg *Inbound) (string, bool) {
	s.mu.Lock()
	id := s.receiving
	s.mu.Unlock()
	switch {
	case id == "":
		s.violation("%s without an open message", msg.Type)
		return "", false
	case msg.MessageID != "" && msg.MessageID != id:
		s.violation("%s for %q while %q is receiving", msg.Type, msg.MessageID, id)
		return "", false
	}
	return id, true
}

func (s *Session) onAudioChunk(msg *Inbound) {
	id, ok := s.current(msg)
	if !ok {
		return
	}
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		s.violation("malformed chunk for %q: %v", id, err)
		return
	}
	n, err := s.acc.Append(id, data)
	if err != nil {
		if errors.Is(err, ErrFinalized) {
			s.cfg.logger.ErrorPrintf("append to finalized message %s", id)
			s.violation("chunk for finalized message %q", id)
			return
		}
		s.publish(err)
		return
	}
	s.cfg.metrics.chunk()

	res, err := s.prober.Probe(s.ctx, id)
	if err != nil {
		s.publish(err)
		return
	}
	if res.FirstPlayable {
		s.reg.update(id, func(m *message) { m.playable = true })
		s.cfg.logger.DebugPrintf("message %s playable after %d chunks", id, n)
	}
	s.emit(AudioChunk{MessageID: id, ChunkCount: n, Playable: res.FirstPlayable})

	if res.FirstPlayable && s.cfg.autoPlay {
		s.autoPlay(id)
	}
}

func (s *Session) autoPlay(id string) {
	s.gate.Lock()
	defer s.gate.Unlock()

	s.mu.Lock()
	busy := s.closed || s.rec.state != RecordIdle
	s.mu.Unlock()
	if busy {
		s.cfg.logger.DebugPrintf("not auto-playing %s while recording", id)
		return
	}
	if _, err := s.playback.Play(s.ctx, MessageSource{ID: id}); err != nil && !errors.Is(err, ErrReplayInProgress) {
		s.publish(err)
	}
}

func (s *Session) onAudioEnd(msg *Inbound) {
	id, ok := s.current(msg)
	if !ok {
		return
	}
	s.mu.Lock()
	s.receiving = ""
	req := s.req
	s.mu.Unlock()

	if err := s.acc.Finalize(id); err != nil {
		s.publish(err)
		return
	}
	snap, _ := s.acc.Snapshot(id)
	duration := s.messageDuration(msg, id, snap.ChunkCount)
	s.reg.update(id, func(m *message) { m.duration = duration })
	s.record(id)

	path := AudioPath(req.UserID, req.TopicID, id, "wav")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		url, err := s.cfg.blobs.Upload(s.ctx, path, snap.Data, wav.MIMEType)
		s.cfg.metrics.upload(Inbound, err == nil)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.publish(fmt.Errorf("%w: %s: %w", ErrUploadFailure, id, err))
			url = ""
		} else {
			s.reg.update(id, func(m *message) { m.audioURL = url })
			s.record(id)
		}
		s.emit(AudioComplete{MessageID: id, Duration: duration, AudioURL: url})
	}()
}

// messageDuration prefers the duration reported by the backend, then the
// decoded duration, then an estimate from the chunk count.
func (s *Session) messageDuration(msg *Inbound, id string, chunks int) time.Duration {
	if msg.Duration > 0 {
		return time.Duration(msg.Duration * float64(time.Second))
	}
	if clip, _, err := s.prober.Decode(s.ctx, id); err == nil {
		return clip.Duration()
	}
	return time.Duration(chunks) * DefaultChunkDuration
}
