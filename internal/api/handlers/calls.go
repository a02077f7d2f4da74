package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/audit"
	"github.com/extractoseum/voice-agent/pkg/errors"
	"github.com/extractoseum/voice-agent/pkg/logger"
	"github.com/extractoseum/voice-agent/pkg/twilio"
	"github.com/extractoseum/voice-agent/pkg/utils"
)

type PlaceCallRequest struct {
	To string `json:"to" binding:"required"`
}

// PlaceCall starts an outbound call to a customer. The carrier fetches
// our voice webhook when the callee answers, which connects the media
// stream the same way an inbound call does.
func (h *Handler) PlaceCall(c *gin.Context) {
	var req PlaceCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, "to is required")
		return
	}

	to := utils.NormalizePhone(req.To)
	if !utils.ValidateE164(to) {
		errors.BadRequest(c, "to must be an E.164 phone number")
		return
	}
	if h.carrier == nil || h.cfg.PublicBaseURL == "" {
		errors.ErrorResponse(c, http.StatusServiceUnavailable,
			"Carrier Not Configured",
			"outbound calling requires carrier credentials and a public base URL")
		return
	}

	res, err := h.carrier.CreateCall(twilio.CreateCallRequest{
		To:                to,
		TwiMLURL:          h.cfg.PublicBaseURL + "/webhooks/voice/incoming",
		StatusCallbackURL: h.cfg.PublicBaseURL + "/webhooks/voice/status",
	})
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	h.logger.Info("Outbound call placed",
		zap.String("call_sid", res.Sid),
		logger.MaskPhone("phone", to),
		zap.String("user_id", c.GetString("user_id")),
	)
	if err := audit.Log(h.mongoClient, res.Sid, audit.ActionCallPlaced, "call", map[string]interface{}{
		"to":        utils.MaskPhoneNumber(to),
		"placed_by": c.GetString("user_id"),
	}); err != nil {
		h.logger.Warn("Audit write failed", zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{
		"call_sid": res.Sid,
		"status":   res.Status,
	})
}

// GetCall reports a call's live session state, falling back to the
// carrier's view when the session is already gone.
func (h *Handler) GetCall(c *gin.Context) {
	callSID := c.Param("callSid")

	if sess := h.registry.Get(callSID); sess != nil {
		c.JSON(http.StatusOK, gin.H{
			"call_sid":      sess.CallSID,
			"active":        true,
			"customer_id":   sess.CustomerID,
			"customer_name": sess.CustomerName,
			"turns":         len(sess.History(100)),
			"started_at":    sess.CreatedAt,
		})
		return
	}

	if h.carrier == nil {
		errors.NotFound(c, "call not found")
		return
	}
	res, err := h.carrier.GetCall(callSID)
	if err != nil {
		errors.NotFound(c, "call not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"call_sid": res.Sid,
		"active":   false,
		"status":   res.Status,
	})
}

// EndCall hangs an in-progress call up on the carrier side. Session
// cleanup happens when the terminal status callback lands.
func (h *Handler) EndCall(c *gin.Context) {
	callSID := c.Param("callSid")
	if h.carrier == nil {
		errors.ErrorResponse(c, http.StatusServiceUnavailable,
			"Carrier Not Configured",
			"hangup requires carrier credentials")
		return
	}

	if err := h.carrier.EndCall(callSID); err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	if err := audit.Log(h.mongoClient, callSID, audit.ActionCallEnded, "call", map[string]interface{}{
		"ended_by": c.GetString("user_id"),
	}); err != nil {
		h.logger.Warn("Audit write failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"call_sid": callSID,
		"status":   "completed",
	})
}

// ListCalls enumerates the sessions currently in the registry
func (h *Handler) ListCalls(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_calls": h.registry.Count(),
	})
}
