package handlers

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/env"
	"github.com/extractoseum/voice-agent/pkg/logger"
	"github.com/extractoseum/voice-agent/pkg/mongo"
	"github.com/extractoseum/voice-agent/pkg/session"
	"github.com/extractoseum/voice-agent/pkg/twilio"
	"github.com/extractoseum/voice-agent/pkg/voice"
)

type Handler struct {
	cfg         *env.Config
	redisClient *redis.Client
	mongoClient *mongo.Client
	logger      *zap.Logger
	registry    *session.Registry
	gateway     *voice.Gateway
	carrier     *twilio.Client
}

func NewHandler(
	cfg *env.Config,
	redisClient *redis.Client,
	mongoClient *mongo.Client,
	registry *session.Registry,
	gateway *voice.Gateway,
	carrier *twilio.Client,
) *Handler {
	return &Handler{
		cfg:         cfg,
		redisClient: redisClient,
		mongoClient: mongoClient,
		logger:      logger.Log,
		registry:    registry,
		gateway:     gateway,
		carrier:     carrier,
	}
}
