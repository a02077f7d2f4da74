package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "nova-2", "es", zap.NewNop())
	c.baseURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return c, srv
}

func TestOpenStreamEmitsFragments(t *testing.T) {
	upgrader := websocket.Upgrader{}

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("encoding") != "mulaw" || q.Get("sample_rate") != "8000" {
			t.Errorf("unexpected audio params: %v", q)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Interim then final result for the same utterance
		interim := `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hola qui","confidence":0.8}]}}`
		final := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hola quiero gomitas","confidence":0.95}]}}`
		empty := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`

		conn.WriteMessage(websocket.TextMessage, []byte(interim))
		conn.WriteMessage(websocket.TextMessage, []byte(empty))
		conn.WriteMessage(websocket.TextMessage, []byte(final))

		// Hold the socket open until the client hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess, err := c.OpenStream(context.Background())
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer sess.Close()

	first := waitFragment(t, sess)
	if first.IsFinal || first.Text != "hola qui" {
		t.Errorf("first fragment = %+v", first)
	}

	second := waitFragment(t, sess)
	if !second.IsFinal || second.Text != "hola quiero gomitas" {
		t.Errorf("second fragment = %+v", second)
	}
	if second.At.IsZero() {
		t.Error("fragment timestamp not set")
	}
}

func TestChannelClosesWhenStreamDies(t *testing.T) {
	upgrader := websocket.Upgrader{}

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close() // immediate drop
	})

	sess, err := c.OpenStream(context.Background())
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	select {
	case _, ok := <-sess.Fragments():
		if ok {
			t.Error("expected closed channel, got fragment")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fragment channel not closed after stream death")
	}
}

func TestOpenStreamWithoutKey(t *testing.T) {
	c := NewClient("", "nova-2", "es", zap.NewNop())
	if c.IsAvailable() {
		t.Fatal("client without key reports available")
	}
	if _, err := c.OpenStream(context.Background()); err == nil {
		t.Error("expected error opening stream without API key")
	}
}

func waitFragment(t *testing.T, sess *LiveSession) Fragment {
	t.Helper()
	select {
	case frag, ok := <-sess.Fragments():
		if !ok {
			t.Fatal("fragment channel closed early")
		}
		return frag
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fragment")
		return Fragment{}
	}
}
