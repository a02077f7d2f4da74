package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/env"
	"github.com/extractoseum/voice-agent/pkg/logger"
	"github.com/extractoseum/voice-agent/pkg/session"
	"github.com/extractoseum/voice-agent/pkg/voice"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
}

func testHandler(cfg *env.Config) (*Handler, *session.Registry) {
	registry := session.NewRegistry(zap.NewNop())
	gateway := voice.NewGateway(voice.Config{
		Registry: registry,
		Logger:   zap.NewNop(),
	})
	return NewHandler(cfg, nil, nil, registry, gateway, nil), registry
}

func postForm(router *gin.Engine, path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIncomingCallReturnsStreamTwiML(t *testing.T) {
	h, _ := testHandler(&env.Config{PublicBaseURL: "https://voice.extractoseum.com"})
	router := gin.New()
	router.POST("/webhooks/voice/incoming", h.IncomingCall)

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("From", "+5215512345678")
	form.Set("Direction", "inbound")

	w := postForm(router, "/webhooks/voice/incoming", form, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "<Connect>") || !strings.Contains(body, "<Stream") {
		t.Errorf("TwiML missing Connect/Stream: %s", body)
	}
	if !strings.Contains(body, "wss://voice.extractoseum.com/webhooks/voice/stream") {
		t.Errorf("TwiML missing stream URL: %s", body)
	}
	if !strings.Contains(body, `value="+5215512345678"`) {
		t.Errorf("TwiML missing from parameter: %s", body)
	}
}

func TestIncomingCallOutboundUsesCallee(t *testing.T) {
	h, _ := testHandler(&env.Config{PublicBaseURL: "https://voice.extractoseum.com"})
	router := gin.New()
	router.POST("/webhooks/voice/incoming", h.IncomingCall)

	form := url.Values{}
	form.Set("CallSid", "CA2")
	form.Set("From", "+5215500000000") // our own number
	form.Set("To", "+5215599887766")
	form.Set("Direction", "outbound-api")

	w := postForm(router, "/webhooks/voice/incoming", form, nil)
	if !strings.Contains(w.Body.String(), `value="+5215599887766"`) {
		t.Errorf("outbound call must pass the callee as from parameter: %s", w.Body.String())
	}
}

func TestIncomingCallRejectsBadSignature(t *testing.T) {
	h, _ := testHandler(&env.Config{
		PublicBaseURL:   "https://voice.extractoseum.com",
		TwilioAuthToken: "secret-token",
	})
	router := gin.New()
	router.POST("/webhooks/voice/incoming", h.IncomingCall)

	form := url.Values{}
	form.Set("CallSid", "CA1")

	w := postForm(router, "/webhooks/voice/incoming", form, map[string]string{
		"X-Twilio-Signature": "bm90LWEtcmVhbC1zaWduYXR1cmU=",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCallStatusTerminalEvictsSession(t *testing.T) {
	h, registry := testHandler(&env.Config{PublicBaseURL: "https://voice.extractoseum.com"})
	registry.Create("CA1")

	router := gin.New()
	router.POST("/webhooks/voice/status", h.CallStatus)

	form := url.Values{}
	form.Set("CallSid", "CA1")
	form.Set("CallStatus", "completed")
	form.Set("CallDuration", "37")

	w := postForm(router, "/webhooks/voice/status", form, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if registry.Get("CA1") != nil {
		t.Error("session survived terminal status")
	}

	// carrier retry must also be a 200
	w = postForm(router, "/webhooks/voice/status", form, nil)
	if w.Code != http.StatusOK {
		t.Errorf("retry status = %d", w.Code)
	}
}

func TestCallStatusRequiresFields(t *testing.T) {
	h, _ := testHandler(&env.Config{})
	router := gin.New()
	router.POST("/webhooks/voice/status", h.CallStatus)

	w := postForm(router, "/webhooks/voice/status", url.Values{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestStreamURLSchemes(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://voice.extractoseum.com", "wss://voice.extractoseum.com/webhooks/voice/stream"},
		{"https://voice.extractoseum.com/", "wss://voice.extractoseum.com/webhooks/voice/stream"},
		{"http://localhost:8080", "ws://localhost:8080/webhooks/voice/stream"},
	}
	for _, tt := range tests {
		h, _ := testHandler(&env.Config{PublicBaseURL: tt.base})
		if got := h.streamURL(); got != tt.want {
			t.Errorf("streamURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestDecodeStreamFrame(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		ok     bool
		kind   voice.EventKind
		callID string
		from   string
	}{
		{
			name:   "start",
			data:   `{"event":"start","streamSid":"MZ1","start":{"callSid":"CA1","customParameters":{"from":"+5215512345678"}}}`,
			ok:     true,
			kind:   voice.EventStart,
			callID: "CA1",
			from:   "+5215512345678",
		},
		{
			name: "media",
			data: `{"event":"media","streamSid":"MZ1","media":{"payload":"AAAA"}}`,
			ok:   true,
			kind: voice.EventMedia,
		},
		{
			name: "stop",
			data: `{"event":"stop","streamSid":"MZ1"}`,
			ok:   true,
			kind: voice.EventStop,
		},
		{
			name: "mark",
			data: `{"event":"mark","streamSid":"MZ1","mark":{"name":"reply-1"}}`,
			ok:   true,
			kind: voice.EventMark,
		},
		{name: "connected ignored", data: `{"event":"connected","protocol":"Call"}`, ok: false},
		{name: "start without callSid", data: `{"event":"start","start":{}}`, ok: false},
		{name: "media without body", data: `{"event":"media"}`, ok: false},
		{name: "malformed json", data: `{"event":`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := decodeStreamFrame([]byte(tt.data))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if ev.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", ev.Kind, tt.kind)
			}
			if tt.callID != "" && ev.CallSID != tt.callID {
				t.Errorf("CallSID = %q", ev.CallSID)
			}
			if tt.from != "" && ev.From != tt.from {
				t.Errorf("From = %q", ev.From)
			}
		})
	}
}

func TestEncodeStreamFrame(t *testing.T) {
	media := encodeStreamFrame(voice.Event{Kind: voice.EventMedia, StreamSID: "MZ1", Payload: "AAAA"})
	mf, ok := media.(outboundMediaFrame)
	if !ok {
		t.Fatalf("media frame type %T", media)
	}
	if mf.Event != "media" || mf.StreamSid != "MZ1" || mf.Media.Payload != "AAAA" {
		t.Errorf("media frame = %+v", mf)
	}

	mark := encodeStreamFrame(voice.Event{Kind: voice.EventMark, StreamSID: "MZ1", Mark: "reply-1"})
	kf, ok := mark.(outboundMarkFrame)
	if !ok {
		t.Fatalf("mark frame type %T", mark)
	}
	if kf.Event != "mark" || kf.Mark.Name != "reply-1" {
		t.Errorf("mark frame = %+v", kf)
	}
}
