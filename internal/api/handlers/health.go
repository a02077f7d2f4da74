package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	ActiveCalls int               `json:"active_calls"`
	Services    map[string]string `json:"services"`
}

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{
		"api":      "healthy",
		"database": "unknown",
		"redis":    "unknown",
	}

	// Check Redis connection
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		services["redis"] = "unhealthy"
	} else {
		services["redis"] = "healthy"
	}

	// Check MongoDB connection
	if err := h.mongoClient.Ping(ctx); err != nil {
		services["database"] = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	// The voice providers are plain HTTPS/WSS APIs; "configured" means
	// credentials are present, not that the provider is reachable.
	services["anthropic"] = configured(h.cfg.AnthropicApiKey)
	services["deepgram"] = configured(h.cfg.DeepgramApiKey)
	services["elevenlabs"] = configured(h.cfg.ElevenLabsApiKey)
	services["twilio"] = configured(h.cfg.TwilioAccountSID)

	overallStatus := "healthy"
	for _, status := range services {
		if status == "unhealthy" {
			overallStatus = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:      overallStatus,
		Timestamp:   time.Now().Format(time.RFC3339),
		ActiveCalls: h.registry.Count(),
		Services:    services,
	})
}

func configured(credential string) string {
	if credential == "" {
		return "not_configured"
	}
	return "configured"
}
