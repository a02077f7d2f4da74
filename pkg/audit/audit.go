package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/logger"
	"github.com/extractoseum/voice-agent/pkg/mongo"
)

// Action represents an audit action
type Action string

const (
	ActionCallPlaced Action = "call_placed"
	ActionCallEnded  Action = "call_ended"
	ActionToolInvoke Action = "tool_invoke"
	ActionEscalate   Action = "escalate"
)

// Log logs an audit event against a call
func Log(client *mongo.Client, callSID string, action Action, resource string, metadata map[string]interface{}) error {
	if client == nil {
		logger.Log.Warn("Audit logging skipped: MongoDB client not available")
		return nil
	}

	metadataJSON, _ := json.Marshal(metadata)

	auditData := map[string]interface{}{
		"call_sid":   callSID,
		"action":     string(action),
		"resource":   resource,
		"metadata":   string(metadataJSON),
		"created_at": time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.NewQuery("call_audit").Insert(ctx, auditData)
	if err != nil {
		logger.Log.Error("Failed to log audit event",
			zap.Error(err),
			zap.String("action", string(action)),
			zap.String("call_sid", callSID),
		)
		return err
	}

	return nil
}
