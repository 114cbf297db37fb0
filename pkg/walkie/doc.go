// Package walkie implements a duplex voice-message stream controller.
//
// A Session binds one conversation to a bidirectional message channel. The
// backend pushes each spoken reply as a sequence of base64 chunks framed by
// audio_start and audio_end; the session accumulates the chunks per message,
// speculatively decodes the growing buffer to find the earliest point at
// which it is playable, and can play (or replay) a message while bytes are
// still arriving. Once a message is complete its audio is uploaded to blob
// storage and the durable URL is reported.
//
// In the other direction the session records microphone audio, uploads it
// and forwards it over the same channel. Recording and playback are
// mutually exclusive: starting a recording stops whatever is playing.
//
// Everything observable is reported on the session's event stream:
//
//	s := walkie.NewSession(negotiator, dialer,
//		walkie.WithPlayer(player),
//		walkie.WithCapture(mic),
//		walkie.WithBlobStore(bucket),
//	)
//	if err := s.Start(ctx, walkie.StartRequest{UserID: "u1", TopicID: "p1"}); err != nil {
//		return err
//	}
//	defer s.Close()
//
//	for ev := range s.Events() {
//		switch ev := ev.(type) {
//		case walkie.AudioChunk:
//			if ev.Playable {
//				s.Replay(ctx, ev.MessageID)
//			}
//		case walkie.ErrorEvent:
//			log.Print(ev.Err)
//		}
//	}
package walkie
