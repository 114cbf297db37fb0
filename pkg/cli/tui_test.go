package cli

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/groovydhruv/power-ups/pkg/walkie"
)

func TestStyles_Event(t *testing.T) {
	s := NewStyles(DefaultTheme)
	tests := []struct {
		ev   walkie.Event
		want []string
	}{
		{walkie.Ready{SessionID: "s1"}, []string{"ready", "s1"}},
		{walkie.AudioChunk{MessageID: "m1", ChunkCount: 3, Playable: true}, []string{"audio_chunk", "m1", "#3", "playable"}},
		{walkie.AudioComplete{MessageID: "m1", Duration: 1500 * time.Millisecond}, []string{"m1", "1.5s", "-"}},
		{walkie.UserAudioComplete{MessageID: "user-1", AudioURL: "http://x/a.wav"}, []string{"user-1", "http://x/a.wav"}},
		{walkie.ErrorEvent{Err: fmt.Errorf("%w: boom", walkie.ErrServer)}, []string{"error", "boom"}},
		{walkie.PlaybackStopped{}, []string{"playback_stopped"}},
	}
	for _, tt := range tests {
		t.Run(tt.ev.EventType(), func(t *testing.T) {
			line := s.Event(tt.ev)
			if strings.Contains(line, "\n") {
				t.Fatalf("multi-line event: %q", line)
			}
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("line %q missing %q", line, w)
				}
			}
		})
	}
}

func TestFrame_Render(t *testing.T) {
	f := Frame{
		Styles: NewStyles(DefaultTheme),
		Title:  "walkie",
		Status: "ready",
		Sections: []Section{
			{Label: "Messages", Content: func() []string { return []string{"m1", "m2"} }},
			{Label: "Log", Content: func() []string { return nil }},
		},
		Help: "r record  s stop  q quit",
	}
	if got := f.Render(0, 0); got != "Loading..." {
		t.Errorf("zero size render = %q", got)
	}
	out := f.Render(60, 20)
	for _, w := range []string{"walkie", "ready", "Messages", "m2", "Log", "q quit"} {
		if !strings.Contains(out, w) {
			t.Errorf("frame missing %q", w)
		}
	}
}

func TestLogWriter(t *testing.T) {
	w := NewLogWriter(3)
	w.Write([]byte("one\ntwo\n"))
	w.Write([]byte("three\nfour\n"))

	lines := w.Lines()
	if len(lines) != 3 || lines[0] != "two" || lines[2] != "four" {
		t.Fatalf("Lines = %v", lines)
	}
	select {
	case l := <-w.Channel():
		if l != "one" {
			t.Errorf("first notification = %q", l)
		}
	default:
		t.Error("no notification")
	}
}
