package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/metrics"
	"github.com/extractoseum/voice-agent/pkg/retry"
)

// Synthesizer converts reply text to telephony audio using ElevenLabs.
// Output format defaults to ulaw_8000 so the audio can be streamed to
// the carrier without transcoding.
type Synthesizer struct {
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	timeout      time.Duration
	logger       *zap.Logger
	baseURL      string
}

// NewSynthesizer creates a new ElevenLabs synthesizer
func NewSynthesizer(apiKey, voiceID, model, outputFormat string, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	if apiKey == "" {
		return &Synthesizer{logger: logger}
	}

	if outputFormat == "" {
		outputFormat = "ulaw_8000"
	}

	return &Synthesizer{
		apiKey:       apiKey,
		voiceID:      voiceID,
		model:        model,
		outputFormat: outputFormat,
		timeout:      timeout,
		logger:       logger,
		baseURL:      "https://api.elevenlabs.io/v1",
	}
}

// IsAvailable checks if the synthesizer is configured
func (s *Synthesizer) IsAvailable() bool {
	return s.apiKey != ""
}

// Synthesize renders text with mood-derived voice settings. A transient
// failure is retried once before the error is returned.
func (s *Synthesizer) Synthesize(ctx context.Context, text, mood string) ([]byte, error) {
	return s.synthesize(ctx, text, VoiceSettingsForMood(mood))
}

// SynthesizeNeutral renders text with default settings. This is the
// degraded path for canned fallback lines; it skips mood mapping so a
// bad mood value can never block the apology.
func (s *Synthesizer) SynthesizeNeutral(ctx context.Context, text string) ([]byte, error) {
	return s.synthesize(ctx, text, DefaultVoiceSettings())
}

func (s *Synthesizer) synthesize(ctx context.Context, text string, settings VoiceSettings) ([]byte, error) {
	if !s.IsAvailable() {
		return nil, fmt.Errorf("ElevenLabs TTS service not available. Set ELEVENLABS_API_KEY environment variable")
	}
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	requestBody := map[string]interface{}{
		"text":           text,
		"model_id":       s.model,
		"voice_settings": settings,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", s.baseURL, s.voiceID, s.outputFormat)

	retryConfig := retry.Config{
		MaxAttempts:  2, // one retry
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}

	var audio []byte
	start := time.Now()
	err = retry.Do(ctx, retryConfig, func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
		if reqErr != nil {
			return fmt.Errorf("failed to create request: %w", reqErr)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("xi-api-key", s.apiKey)

		client := &http.Client{Timeout: s.timeout}
		resp, doErr := client.Do(httpReq)
		if doErr != nil {
			return fmt.Errorf("failed to execute request: %w", doErr)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("ElevenLabs API error: %d - %s", resp.StatusCode, string(body))
		}

		audio, doErr = io.ReadAll(resp.Body)
		if doErr != nil {
			return fmt.Errorf("failed to read audio: %w", doErr)
		}
		if len(audio) == 0 {
			return fmt.Errorf("empty audio response")
		}
		return nil
	})

	metrics.RecordServiceCall("elevenlabs", err == nil, time.Since(start))
	if err != nil {
		metrics.RecordSynthesisFailure()
		return nil, err
	}

	s.logger.Debug("Synthesized reply",
		zap.Int("text_len", len(text)),
		zap.Int("audio_bytes", len(audio)),
	)

	return audio, nil
}
