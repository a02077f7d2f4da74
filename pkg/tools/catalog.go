package tools

import "github.com/extractoseum/voice-agent/pkg/ai"

// Catalog is the fixed tool set offered to the model on every turn.
// Descriptions are in Spanish because the model converses in Spanish;
// names stay stable because the gateway dispatches on them.
func Catalog() []ai.Tool {
	return []ai.Tool{
		{
			Name:        "search_products",
			Description: "Busca productos de Extractos EUM por nombre o categoría (gomitas, tinturas, tópicos). Úsala antes de recomendar cualquier producto.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Texto de búsqueda, por ejemplo 'gomitas' o 'tintura para dormir'",
					},
					"category": map[string]interface{}{
						"type":        "string",
						"description": "Categoría opcional: gomitas, tinturas o topicos",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "lookup_order",
			Description: "Consulta el estado de un pedido por número de pedido o por el teléfono del cliente que llama.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"order_number": map[string]interface{}{
						"type":        "string",
						"description": "Número de pedido, por ejemplo EUM-1042",
					},
				},
			},
		},
		{
			Name:        "get_coa",
			Description: "Obtiene el certificado de análisis (COA) de un producto o lote para compartirlo con el cliente.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"product": map[string]interface{}{
						"type":        "string",
						"description": "Nombre del producto",
					},
					"batch": map[string]interface{}{
						"type":        "string",
						"description": "Número de lote si el cliente lo tiene",
					},
				},
			},
		},
		{
			Name:        "send_whatsapp",
			Description: "Envía un mensaje de WhatsApp al cliente que está en la llamada, por ejemplo con enlaces de productos o el COA.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"message": map[string]interface{}{
						"type":        "string",
						"description": "Contenido del mensaje a enviar",
					},
				},
				"required": []string{"message"},
			},
		},
		{
			Name:        "escalate_to_human",
			Description: "Escala la conversación con un compañero humano cuando el cliente lo pide o cuando no puedes resolver su caso.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"reason": map[string]interface{}{
						"type":        "string",
						"description": "Motivo breve de la escalación",
					},
				},
				"required": []string{"reason"},
			},
		},
	}
}
