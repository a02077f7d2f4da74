package ai

import (
	"fmt"
	"strings"
)

// CustomerContext is what the resolver learned about the caller
type CustomerContext struct {
	Identified bool
	Name       string
	Tier       string
	Tags       []string
}

// araSystemPrompt is the fixed persona. There is exactly one voice on
// this line; personas are not configurable.
const araSystemPrompt = `Eres Ara, la asistente de ventas de Extractos EUM, en una llamada telefónica de voz.

Reglas de la llamada:
- Responde SIEMPRE en español, en frases cortas y naturales. Esto se lee en voz alta: nada de listas, viñetas, emojis ni formato.
- Máximo dos o tres oraciones por respuesta. Si hay mucho que decir, resume y ofrece enviar el detalle por WhatsApp.
- Sé cálida y directa. No repitas el nombre del cliente en cada frase.

Sobre Extractos EUM:
- Vendemos productos de extractos naturales en tres líneas: gomitas, tinturas y tópicos.
- Puedes buscar productos, consultar pedidos, compartir certificados de análisis (COA), enviar información por WhatsApp y escalar con un humano.

Flujo de venta:
1. Entiende qué necesita el cliente antes de recomendar.
2. Recomienda productos concretos con precio cuando lo tengas.
3. Cierra con un siguiente paso claro: pedido, WhatsApp o seguimiento.

Si no sabes algo o una herramienta falla, dilo con honestidad y ofrece escalar con un compañero humano.`

// BuildSystemPrompt appends the caller context block to the persona
func BuildSystemPrompt(cust CustomerContext) string {
	var b strings.Builder
	b.WriteString(araSystemPrompt)
	b.WriteString("\n\nContexto del cliente:\n")

	if !cust.Identified {
		b.WriteString("- Cliente no identificado. Pregunta con quién tienes el gusto antes de personalizar recomendaciones.\n")
		return b.String()
	}

	if cust.Name != "" {
		b.WriteString(fmt.Sprintf("- Nombre: %s\n", cust.Name))
	}
	if cust.Tier != "" {
		b.WriteString(fmt.Sprintf("- Nivel: %s\n", cust.Tier))
	}
	if len(cust.Tags) > 0 {
		b.WriteString(fmt.Sprintf("- Etiquetas: %s\n", strings.Join(cust.Tags, ", ")))
	}

	return b.String()
}

// GreetingFor is the opening line played before the caller speaks
func GreetingFor(firstName string) string {
	if firstName == "" {
		return "¡Hola! Soy Ara de Extractos EUM. ¿Con quién tengo el gusto?"
	}
	return fmt.Sprintf("¡Hola %s! Soy Ara de Extractos EUM. ¿En qué te puedo ayudar hoy?", firstName)
}

// FirstName extracts the leading name token for the greeting
func FirstName(fullName string) string {
	fields := strings.Fields(strings.TrimSpace(fullName))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
