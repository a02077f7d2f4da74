package handlers

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/errors"
	"github.com/extractoseum/voice-agent/pkg/logger"
	"github.com/extractoseum/voice-agent/pkg/webhook"
)

// IncomingCall answers the carrier's voice webhook with TwiML that
// connects the call's audio to our media stream endpoint. The caller's
// number travels as a custom stream parameter because the stream start
// event does not carry it.
func (h *Handler) IncomingCall(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		errors.BadRequest(c, "unreadable webhook form")
		return
	}
	if err := webhook.VerifyTwilioSignature(
		h.cfg.TwilioAuthToken,
		h.webhookURL(c),
		c.Request.PostForm,
		c.GetHeader("X-Twilio-Signature"),
	); err != nil {
		h.logger.Warn("Rejected voice webhook", zap.Error(err))
		errors.Unauthorized(c, "invalid webhook signature")
		return
	}

	callSID := c.PostForm("CallSid")
	from := c.PostForm("From")
	// On outbound calls the callee is in To and From is our own number
	if direction := c.PostForm("Direction"); strings.HasPrefix(direction, "outbound") {
		from = c.PostForm("To")
	}

	h.logger.Info("Incoming voice webhook",
		zap.String("call_sid", callSID),
		logger.MaskPhone("phone", from),
	)

	twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%s">
      <Parameter name="from" value="%s"/>
    </Stream>
  </Connect>
</Response>`, xmlEscape(h.streamURL()), xmlEscape(from))

	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(twiml))
}

// CallStatus applies carrier status callbacks. The carrier retries
// delivery, so each (call, status) pair is applied at most once via a
// redis guard; replays are acknowledged without reprocessing.
func (h *Handler) CallStatus(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		errors.BadRequest(c, "unreadable webhook form")
		return
	}
	if err := webhook.VerifyTwilioSignature(
		h.cfg.TwilioAuthToken,
		h.webhookURL(c),
		c.Request.PostForm,
		c.GetHeader("X-Twilio-Signature"),
	); err != nil {
		h.logger.Warn("Rejected status webhook", zap.Error(err))
		errors.Unauthorized(c, "invalid webhook signature")
		return
	}

	callSID := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")
	if callSID == "" || status == "" {
		errors.BadRequest(c, "CallSid and CallStatus are required")
		return
	}
	duration, _ := strconv.Atoi(c.PostForm("CallDuration"))

	if h.redisClient != nil {
		key := fmt.Sprintf("callstatus:%s:%s", callSID, status)
		set, err := h.redisClient.SetNX(c.Request.Context(), key, 1, 24*time.Hour).Result()
		if err != nil {
			// redis being down must not drop status updates
			h.logger.Warn("Status idempotency check unavailable", zap.Error(err))
		} else if !set {
			c.Status(http.StatusOK)
			return
		}
	}

	h.gateway.HandleStatus(c.Request.Context(), callSID, status, duration)
	c.Status(http.StatusOK)
}

// webhookURL reconstructs the public URL the carrier signed. Signatures
// are computed against the public address, not whatever host the
// reverse proxy forwarded to us.
func (h *Handler) webhookURL(c *gin.Context) string {
	if h.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(h.cfg.PublicBaseURL, "/") + c.Request.URL.RequestURI()
	}
	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}

// streamURL is the wss address the carrier connects media streams to
func (h *Handler) streamURL() string {
	base := strings.TrimSuffix(h.cfg.PublicBaseURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/webhooks/voice/stream"
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
