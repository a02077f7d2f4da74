package customer

import (
	"context"
	"fmt"

	"github.com/extractoseum/voice-agent/pkg/mongo"
	"github.com/extractoseum/voice-agent/pkg/otel"
	"github.com/extractoseum/voice-agent/pkg/utils"
)

// MongoStrategies is the production strategy ranking:
// exact E.164 match, then loose last-10-digits match, then a messaging
// contact that never became a full customer record.
func MongoStrategies(db *mongo.Client) []Strategy {
	return []Strategy{
		{Name: "exact_phone", Lookup: exactPhone(db)},
		{Name: "phone_last10", Lookup: phoneLast10(db)},
		{Name: "conversation_contact", Lookup: conversationContact(db)},
	}
}

func exactPhone(db *mongo.Client) func(ctx context.Context, phone string) (*Resolution, error) {
	return func(ctx context.Context, phone string) (*Resolution, error) {
		return findClient(ctx, db, "phone", utils.NormalizePhone(phone))
	}
}

func phoneLast10(db *mongo.Client) func(ctx context.Context, phone string) (*Resolution, error) {
	return func(ctx context.Context, phone string) (*Resolution, error) {
		return findClient(ctx, db, "phone_last10", utils.LastDigits(phone, 10))
	}
}

func findClient(ctx context.Context, db *mongo.Client, field, value string) (*Resolution, error) {
	if value == "" {
		return nil, nil
	}

	var doc map[string]interface{}
	err := otel.WithDBSpan(ctx, "clients", "findOne", func(ctx context.Context) error {
		var findErr error
		doc, findErr = db.NewQuery("clients").
			Eq(field, value).
			Select("_id", "name", "tier", "tags").
			FindOne(ctx)
		return findErr
	})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	res := &Resolution{
		Status:     StatusFound,
		CustomerID: stringField(doc, "_id"),
		Name:       stringField(doc, "name"),
		Tier:       stringField(doc, "tier"),
		Tags:       stringSlice(doc, "tags"),
	}
	return res, nil
}

func conversationContact(db *mongo.Client) func(ctx context.Context, phone string) (*Resolution, error) {
	return func(ctx context.Context, phone string) (*Resolution, error) {
		handle := utils.LastDigits(phone, 10)
		if handle == "" {
			return nil, nil
		}

		var doc map[string]interface{}
		err := otel.WithDBSpan(ctx, "conversations", "findOne", func(ctx context.Context) error {
			var findErr error
			doc, findErr = db.NewQuery("conversations").
				Eq("contact_handle", handle).
				Select("_id", "contact_name").
				Sort("updated_at", false).
				FindOne(ctx)
			return findErr
		})
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, nil
		}

		// A chat contact gives us a name to greet with, nothing more
		return &Resolution{
			Status:         StatusPartial,
			Name:           stringField(doc, "contact_name"),
			ConversationID: stringField(doc, "_id"),
		}, nil
	}
}

// EnsureConversation guarantees a Found customer has an open voice
// conversation to attach call turns to, creating one when absent.
func EnsureConversation(ctx context.Context, db *mongo.Client, res *Resolution, phone string) error {
	if res.Status != StatusFound || res.ConversationID != "" {
		return nil
	}

	var doc map[string]interface{}
	err := otel.WithDBSpan(ctx, "conversations", "findOne", func(ctx context.Context) error {
		var findErr error
		doc, findErr = db.NewQuery("conversations").
			Eq("customer_id", res.CustomerID).
			Eq("channel", "voice").
			Eq("status", "open").
			Select("_id").
			Sort("updated_at", false).
			FindOne(ctx)
		return findErr
	})
	if err != nil {
		return fmt.Errorf("conversation lookup: %w", err)
	}

	if doc != nil {
		res.ConversationID = stringField(doc, "_id")
		return nil
	}

	newDoc := map[string]interface{}{
		"customer_id":    res.CustomerID,
		"contact_name":   res.Name,
		"contact_handle": utils.LastDigits(phone, 10),
		"channel":        "voice",
		"status":         "open",
	}
	mongo.AddTimestamps(newDoc)

	var insertedID interface{}
	err = otel.WithDBSpan(ctx, "conversations", "insert", func(ctx context.Context) error {
		var insertErr error
		insertedID, insertErr = db.NewQuery("conversations").Insert(ctx, newDoc)
		return insertErr
	})
	if err != nil {
		return fmt.Errorf("conversation create: %w", err)
	}

	res.ConversationID = fmt.Sprintf("%v", insertedID)
	return nil
}

func stringField(doc map[string]interface{}, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	if v, ok := doc[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func stringSlice(doc map[string]interface{}, key string) []string {
	raw, ok := doc[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
