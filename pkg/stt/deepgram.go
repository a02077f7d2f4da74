package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Fragment is one transcription result from the live session
type Fragment struct {
	Text    string
	IsFinal bool
	At      time.Time
}

// Client opens Deepgram live transcription sessions. Audio format is
// fixed to what the telephony stream delivers: 8kHz mono μ-law.
type Client struct {
	apiKey   string
	model    string
	language string
	logger   *zap.Logger
	baseURL  string // ws scheme, overridable in tests
}

// NewClient creates a new Deepgram live transcription client
func NewClient(apiKey, model, language string, logger *zap.Logger) *Client {
	if apiKey == "" {
		return &Client{logger: logger}
	}

	return &Client{
		apiKey:   apiKey,
		model:    model,
		language: language,
		logger:   logger,
		baseURL:  "wss://api.deepgram.com/v1",
	}
}

// IsAvailable checks if the Deepgram client is configured
func (c *Client) IsAvailable() bool {
	return c.apiKey != ""
}

// OpenStream dials a live transcription session. The returned session
// owns the websocket; the caller must Close it when the call ends.
func (c *Client) OpenStream(ctx context.Context) (*LiveSession, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("Deepgram STT service not available. Set DEEPGRAM_API_KEY environment variable")
	}

	model := c.model
	if model == "" {
		model = "nova-2"
	}

	params := url.Values{}
	params.Set("model", model)
	if c.language != "" {
		params.Set("language", c.language)
	}
	params.Set("encoding", "mulaw")
	params.Set("sample_rate", "8000")
	params.Set("channels", "1")
	params.Set("punctuate", "true")
	params.Set("interim_results", "true")

	endpoint := fmt.Sprintf("%s/listen?%s", c.baseURL, params.Encode())

	header := http.Header{}
	header.Set("Authorization", "Token "+c.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("Deepgram dial failed: %d - %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("Deepgram dial failed: %w", err)
	}

	s := &LiveSession{
		conn:      conn,
		fragments: make(chan Fragment, 32),
		logger:    c.logger,
	}
	go s.readLoop()

	return s, nil
}

// LiveSession is one open transcription stream. Fragments arrive on the
// Fragments channel; the channel is closed when the session dies, which
// degrades the call to non-listening rather than tearing it down.
type LiveSession struct {
	conn      *websocket.Conn
	fragments chan Fragment
	logger    *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// SendAudio forwards one μ-law frame to the recognizer
func (s *LiveSession) SendAudio(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Fragments returns the transcription result channel
func (s *LiveSession) Fragments() <-chan Fragment {
	return s.fragments
}

// Close finalizes the stream. CloseStream asks Deepgram to flush any
// pending results before the socket goes down.
func (s *LiveSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()

		// Give the read loop a moment to drain flushed results
		time.Sleep(250 * time.Millisecond)
		err = s.conn.Close()
	})
	return err
}

type liveResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *LiveSession) readLoop() {
	defer close(s.fragments)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Deepgram stream closed unexpectedly", zap.Error(err))
			}
			return
		}

		var result liveResult
		if err := json.Unmarshal(message, &result); err != nil {
			s.logger.Debug("Unparseable Deepgram message", zap.Error(err))
			continue
		}

		if result.Type != "Results" || len(result.Channel.Alternatives) == 0 {
			continue
		}

		text := result.Channel.Alternatives[0].Transcript
		if text == "" {
			continue
		}

		frag := Fragment{
			Text:    text,
			IsFinal: result.IsFinal,
			At:      time.Now(),
		}

		select {
		case s.fragments <- frag:
		default:
			// Consumer stalled; drop rather than block the read loop
			s.logger.Warn("Dropping transcription fragment, consumer too slow")
		}
	}
}
