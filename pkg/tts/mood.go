package tts

import "strings"

// VoiceSettings controls ElevenLabs prosody per reply
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	Speed           float64 `json:"speed"`
}

// DefaultVoiceSettings is the neutral delivery used when the model
// reports no mood or one we do not recognize.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		Speed:           1.0,
	}
}

// VoiceSettingsForMood maps the caller's mood (as classified by the
// dialogue model) to a delivery. Total and deterministic: every input
// maps to exactly one settings value.
func VoiceSettingsForMood(mood string) VoiceSettings {
	settings := DefaultVoiceSettings()

	switch strings.ToLower(strings.TrimSpace(mood)) {
	case "frustrado", "urgente", "enojado":
		// Steadier and slightly faster: get to the point
		settings.Stability = 0.6
		settings.Style = 0.3
		settings.Speed = 1.1
	case "satisfecho", "happy", "entusiasmado":
		settings.Stability = 0.4
		settings.Style = 0.5
		settings.Speed = 1.0
	case "preocupado", "ansioso":
		// Calm, reassuring delivery
		settings.Stability = 0.5
		settings.Style = 0.2
		settings.Speed = 1.0
	}

	return settings
}
