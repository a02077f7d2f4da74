package voice

import (
	"context"

	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/metrics"
)

// terminalStatuses are the carrier statuses after which a call can
// never produce more events.
var terminalStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

// IsTerminalStatus reports whether a carrier status ends the call
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}

// HandleStatus applies one carrier status callback. Terminal statuses
// evict the session; eviction is idempotent because the carrier retries
// callbacks and the media stream's stop event may already have cleaned
// up.
func (g *Gateway) HandleStatus(ctx context.Context, callSID, status string, durationSec int) {
	g.logger.Info("Call status update",
		zap.String("call_sid", callSID),
		zap.String("status", status),
		zap.Int("duration_sec", durationSec),
	)

	if g.store != nil {
		if err := g.store.UpdateCallStatus(ctx, callSID, status, durationSec); err != nil {
			g.logger.Error("Call status not persisted",
				zap.String("call_sid", callSID),
				zap.String("status", status),
				zap.Error(err),
			)
		}
	}

	if !IsTerminalStatus(status) {
		return
	}

	metrics.RecordCallEnded(status)
	if g.registry.Remove(callSID) {
		metrics.RecordStreamDetached()
	}
}
