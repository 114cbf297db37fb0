package walkie

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsBackend is a scripted backend: it sends script on connect and then
// forwards whatever the client sends to got.
func wsBackend(t *testing.T, script []any) (*httptest.Server, chan Outbound) {
	t.Helper()
	got := make(chan Outbound, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, msg := range script {
			if s, ok := msg.(string); ok {
				conn.WriteMessage(websocket.TextMessage, []byte(s))
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		for {
			var out Outbound
			if err := conn.ReadJSON(&out); err != nil {
				return
			}
			got <- out
		}
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketChannel_Messages(t *testing.T) {
	srv, got := wsBackend(t, []any{
		Inbound{Type: TypeSetupComplete},
		"{broken",
		Inbound{Type: TypeAudioStart, MessageID: "m1"},
	})
	ch, err := (&WebSocketDialer{}).Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	var types []string
	for msg, err := range ch.Messages() {
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		types = append(types, msg.Type)
		if len(types) == 2 {
			break
		}
	}
	if types[0] != TypeSetupComplete || types[1] != TypeAudioStart {
		t.Fatalf("types = %v", types)
	}

	if err := ch.Send(context.Background(), &Outbound{Type: TypeAudio, Data: "AAA=", MIMEType: "audio/wav"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case out := <-got:
		if out.Type != TypeAudio || out.Data != "AAA=" || out.MIMEType != "audio/wav" {
			t.Fatalf("server got %+v", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server received nothing")
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ch.Send(context.Background(), &Outbound{Type: TypeAudio}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close = %v", err)
	}
}

func TestWebSocketChannel_PeerDrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteJSON(Inbound{Type: TypeSetupComplete})
		conn.Close()
	}))
	defer srv.Close()

	ch, err := (&WebSocketDialer{}).Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	var lastErr error
	n := 0
	for msg, err := range ch.Messages() {
		if err != nil {
			lastErr = err
			break
		}
		if msg.Type == TypeSetupComplete {
			n++
		}
	}
	if n != 1 || lastErr == nil {
		t.Fatalf("got %d messages, err %v", n, lastErr)
	}
}

func TestWebSocket_Session(t *testing.T) {
	wav := []byte("RIFF....WAVE")
	srv, got := wsBackend(t, []any{
		Inbound{Type: TypeSetupComplete},
		Inbound{Type: TypeAudioStart, MessageID: "m1"},
		Inbound{Type: TypeAudioResponse, MessageID: "m1", Data: base64.StdEncoding.EncodeToString(wav)},
		Inbound{Type: TypeAudioEnd, MessageID: "m1", Duration: 1.5},
	})

	capture := &fakeCapture{blob: &Blob{Data: []byte("rec"), MIMEType: "audio/webm"}}
	s := NewSession(
		&StaticNegotiator{Grant: Grant{SessionID: "ws-1", Endpoint: wsURL(srv)}},
		&WebSocketDialer{},
		WithCapture(capture),
		WithDecoder(&byteDecoder{minBytes: 1}),
		WithPlayer(newFakePlayer(false)),
	)
	defer s.Close()
	events := collect(s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Start(ctx, StartRequest{UserID: "u", TopicID: "t"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	ev := events.wait(t, "audio complete", isType[AudioComplete](nil)).(AudioComplete)
	if ev.MessageID != "m1" || ev.Duration != 1500*time.Millisecond {
		t.Fatalf("AudioComplete = %+v", ev)
	}

	s.StartRecording(ctx)
	info, err := s.StopRecording(ctx)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if !strings.HasSuffix(info.AudioURL, ".webm") {
		t.Fatalf("AudioURL = %q", info.AudioURL)
	}
	select {
	case out := <-got:
		if out.Type != TypeAudio || out.MIMEType != "audio/webm" || out.Data != base64.StdEncoding.EncodeToString([]byte("rec")) {
			t.Fatalf("server got %+v", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recording not forwarded")
	}
}
