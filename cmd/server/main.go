package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/internal/api/handlers"
	"github.com/extractoseum/voice-agent/pkg/ai"
	"github.com/extractoseum/voice-agent/pkg/customer"
	"github.com/extractoseum/voice-agent/pkg/env"
	"github.com/extractoseum/voice-agent/pkg/logger"
	"github.com/extractoseum/voice-agent/pkg/middleware"
	"github.com/extractoseum/voice-agent/pkg/mongo"
	"github.com/extractoseum/voice-agent/pkg/otel"
	"github.com/extractoseum/voice-agent/pkg/session"
	"github.com/extractoseum/voice-agent/pkg/stt"
	"github.com/extractoseum/voice-agent/pkg/tools"
	"github.com/extractoseum/voice-agent/pkg/tts"
	"github.com/extractoseum/voice-agent/pkg/twilio"
	"github.com/extractoseum/voice-agent/pkg/voice"
)

// VoiceServer combines the internal API, carrier webhooks and the
// media-stream gateway in one process.
type VoiceServer struct {
	cfg         *env.Config
	mongoClient *mongo.Client
	redisClient *redis.Client
	handler     *handlers.Handler
}

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize OpenTelemetry if enabled
	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing("voice-agent", "1.0.0", cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer shutdown()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting Voice Agent server",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
	)

	// Initialize Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Initialize MongoDB
	mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Log.Warn("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	// Carrier client (optional: inbound-only deployments run without it)
	var carrier *twilio.Client
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		carrier = twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		logger.Log.Info("Carrier client initialized")
	} else {
		logger.Log.Warn("Carrier credentials missing; outbound calls and hangup disabled")
	}

	// Dialogue engine collaborators
	llm := ai.NewAnthropicClient(cfg.AnthropicApiKey, cfg.AnthropicModel, 30*time.Second, logger.Log)
	toolGateway := tools.NewGateway(mongoClient, cfg.WhatsAppSendURL, logger.Log)
	catalog := tools.Catalog()

	sttClient := stt.NewClient(cfg.DeepgramApiKey, cfg.DeepgramModel, cfg.DeepgramLanguage, logger.Log)
	synthesizer := tts.NewSynthesizer(
		cfg.ElevenLabsApiKey,
		cfg.ElevenLabsVoiceID,
		cfg.ElevenLabsModel,
		cfg.ElevenLabsOutputFormat,
		30*time.Second,
		logger.Log,
	)

	registry := session.NewRegistry(logger.Log)
	resolver := customer.NewResolver(customer.MongoStrategies(mongoClient), logger.Log)

	var carrierEnder voice.CallEnder
	if carrier != nil {
		carrierEnder = carrier
	}

	gateway := voice.NewGateway(voice.Config{
		Registry: registry,
		Resolve: func(ctx context.Context, phone string) customer.Resolution {
			res := resolver.Resolve(ctx, phone)
			if err := customer.EnsureConversation(ctx, mongoClient, &res, phone); err != nil {
				logger.Log.Warn("Conversation not ensured", zap.Error(err))
			}
			return res
		},
		Transcriber: voice.NewDeepgramTranscriber(sttClient),
		Synthesizer: synthesizer,
		NewResponder: func(call tools.Context) voice.Responder {
			return ai.NewEngine(
				llm,
				toolGateway.Bind(call),
				catalog,
				cfg.DialogueMaxToolIterations,
				cfg.DialogueMaxTokens,
				logger.Log,
			)
		},
		Store:         voice.NewMongoStore(mongoClient, logger.Log),
		Carrier:       carrierEnder,
		SilenceWindow: time.Duration(cfg.TurnSilenceMs) * time.Millisecond,
		Logger:        logger.Log,
	})

	apiHandler := handlers.NewHandler(cfg, redisClient, mongoClient, registry, gateway, carrier)

	server := &VoiceServer{
		cfg:         cfg,
		mongoClient: mongoClient,
		redisClient: redisClient,
		handler:     apiHandler,
	}

	router := server.setupRouter()

	srv := &http.Server{
		Addr:        ":" + cfg.AppPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Media-stream websockets live for the whole call; no write timeout
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Log.Info("Voice Agent listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

func (s *VoiceServer) setupRouter() *gin.Engine {
	if s.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())

	// Add OpenTelemetry middleware if enabled
	if s.cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s %s %d %s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	// CORS
	corsConfig := cors.DefaultConfig()
	if s.cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.cfg.CORSAllowedOrigins}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(s.redisClient, s.cfg.APIRateLimitRPM)

	// Health and metrics
	router.GET("/health", s.handler.HealthCheck)
	router.GET("/metrics", s.handler.GetMetrics)
	router.GET("/metrics/prometheus", s.handler.GetPrometheusMetrics)

	// Carrier webhooks (public, signature verified in the handlers).
	// The media stream endpoint cannot be signature checked; it carries
	// no secrets and only accepts the carrier's framing.
	webhooks := router.Group("/webhooks/voice")
	{
		webhooks.POST("/incoming", s.handler.IncomingCall)
		webhooks.POST("/status", s.handler.CallStatus)
		webhooks.GET("/stream", s.handler.VoiceStream)
	}

	// Internal API (protected)
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(s.cfg.JWTSecret))
	api.Use(rateLimiter.Middleware())
	{
		calls := api.Group("/calls")
		{
			calls.POST("", s.handler.PlaceCall)
			calls.GET("", s.handler.ListCalls)
			calls.GET("/:callSid", s.handler.GetCall)
			calls.DELETE("/:callSid", s.handler.EndCall)
		}
	}

	return router
}
