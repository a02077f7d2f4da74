package voice

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/mongo"
	"github.com/extractoseum/voice-agent/pkg/otel"
	"github.com/extractoseum/voice-agent/pkg/session"
)

// CallRecord is the persisted shape of one call.
type CallRecord struct {
	CallSID        string
	Direction      string
	Phone          string
	CustomerID     string
	CustomerName   string
	ConversationID string
	Status         string
}

// Store persists calls and turns. Persistence failures are logged by
// callers and never interrupt a live call.
type Store interface {
	UpsertCall(ctx context.Context, call CallRecord) error
	SaveTurn(ctx context.Context, callSID, conversationID string, turn session.Turn) error
	UpdateCallStatus(ctx context.Context, callSID, status string, durationSec int) error
}

// MongoStore writes calls to voice_calls and turns to voice_turns.
type MongoStore struct {
	db     *mongo.Client
	logger *zap.Logger
}

func NewMongoStore(db *mongo.Client, logger *zap.Logger) *MongoStore {
	return &MongoStore{db: db, logger: logger}
}

func (s *MongoStore) UpsertCall(ctx context.Context, call CallRecord) error {
	doc := map[string]interface{}{
		"call_sid":        call.CallSID,
		"direction":       call.Direction,
		"phone":           call.Phone,
		"customer_id":     call.CustomerID,
		"customer_name":   call.CustomerName,
		"conversation_id": call.ConversationID,
		"status":          call.Status,
	}

	mongo.UpdateTimestamp(doc)

	return otel.WithDBSpan(ctx, "voice_calls", "upsert", func(ctx context.Context) error {
		_, err := s.db.NewQuery("voice_calls").
			Upsert(ctx, bson.M{"call_sid": call.CallSID}, doc)
		return err
	})
}

func (s *MongoStore) SaveTurn(ctx context.Context, callSID, conversationID string, turn session.Turn) error {
	doc := map[string]interface{}{
		"_id":             uuid.NewString(),
		"call_sid":        callSID,
		"conversation_id": conversationID,
		"role":            turn.Role,
		"text":            turn.Text,
		"failed":          turn.Failed,
		"spoken_at":       turn.Timestamp,
	}
	mongo.AddTimestamps(doc)

	return otel.WithDBSpan(ctx, "voice_turns", "insert", func(ctx context.Context) error {
		_, err := s.db.NewQuery("voice_turns").Insert(ctx, doc)
		return err
	})
}

func (s *MongoStore) UpdateCallStatus(ctx context.Context, callSID, status string, durationSec int) error {
	update := map[string]interface{}{
		"status": status,
	}
	if durationSec > 0 {
		update["duration_sec"] = durationSec
	}

	mongo.UpdateTimestamp(update)

	return otel.WithDBSpan(ctx, "voice_calls", "updateOne", func(ctx context.Context) error {
		_, err := s.db.NewQuery("voice_calls").
			Eq("call_sid", callSID).
			UpdateOne(ctx, update)
		return err
	})
}
