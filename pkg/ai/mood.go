package ai

import "strings"

// moodKeywords maps caller phrasing to the discrete mood labels the
// synthesizer understands. Keyword matching is deliberately dumb: a
// wrong mood only shades the delivery, it never changes the words.
var moodKeywords = map[string][]string{
	"enojado":    {"enojado", "molesto", "furioso", "harto", "pésimo", "queja"},
	"urgente":    {"urgente", "urge", "rápido", "ya mismo", "hoy mismo", "inmediato"},
	"preocupado": {"preocupado", "preocupa", "me preocupa", "nervioso", "ansioso"},
	"satisfecho": {"gracias", "excelente", "genial", "perfecto", "buenísimo"},
}

// ClassifyMood derives a mood label from the caller's turn text.
// Returns "" when nothing matches; the synthesizer treats that as the
// default delivery.
func ClassifyMood(text string) string {
	lowered := strings.ToLower(text)

	for _, mood := range []string{"enojado", "urgente", "preocupado", "satisfecho"} {
		for _, kw := range moodKeywords[mood] {
			if strings.Contains(lowered, kw) {
				return mood
			}
		}
	}

	return ""
}
