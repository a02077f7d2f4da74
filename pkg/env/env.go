package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string
	AppPort     string
	TZ          string
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	RedisURL string

	MongoURI string
	DBName   string

	AnthropicApiKey string
	AnthropicModel  string

	DeepgramApiKey   string
	DeepgramModel    string
	DeepgramLanguage string

	ElevenLabsApiKey       string
	ElevenLabsVoiceID      string
	ElevenLabsModel        string
	ElevenLabsOutputFormat string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	PublicBaseURL   string // Public HTTPS URL Twilio can reach (e.g., https://voice.extractoseum.com)
	WhatsAppSendURL string

	TurnSilenceMs             int
	DialogueMaxToolIterations int
	DialogueMaxTokens         int

	APIRateLimitRPM int

	LogLevel           string
	CORSAllowedOrigins string

	OTELEndpoint string
	OTELEnabled  bool
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// Try to load .env file, but don't fail if it doesn't exist
		// This allows the app to work with environment variables only (e.g., in production)
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
			// File doesn't exist - continue without it, use environment variables
		}
	}

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		AppPort:     getEnv("APP_PORT", "8080"),
		TZ:          getEnv("TZ", "America/Mexico_City"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),
		JWTIssuer:   getEnv("JWT_ISSUER", "extractoseum-voice"),
		JWTAudience: getEnv("JWT_AUDIENCE", "voice-internal-api"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:   getEnv("DB_NAME", "extractoseum"),

		AnthropicApiKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),

		DeepgramApiKey:   getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:    getEnv("DEEPGRAM_MODEL", "nova-2"),
		DeepgramLanguage: getEnv("DEEPGRAM_LANGUAGE", "es"),

		ElevenLabsApiKey:       getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:      getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModel:        getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		ElevenLabsOutputFormat: getEnv("ELEVENLABS_OUTPUT_FORMAT", "ulaw_8000"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),
		WhatsAppSendURL: getEnv("WHATSAPP_SEND_URL", ""),

		TurnSilenceMs:             getEnvInt("TURN_SILENCE_MS", 800),
		DialogueMaxToolIterations: getEnvInt("DIALOGUE_MAX_TOOL_ITERATIONS", 3),
		DialogueMaxTokens:         getEnvInt("DIALOGUE_MAX_TOKENS", 300),

		APIRateLimitRPM: getEnvInt("API_RATE_LIMIT_RPM", 180),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
	}

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", cfg.TZ, err)
	}
	time.Local = loc

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
