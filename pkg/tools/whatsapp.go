package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type sendWhatsAppArgs struct {
	Message string `json:"message"`
}

func (g *Gateway) sendWhatsApp(ctx context.Context, args json.RawMessage, call Context) (Result, error) {
	var in sendWhatsAppArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Result{Success: false, Error: "argumentos inválidos para send_whatsapp"}, nil
	}
	if in.Message == "" {
		return Result{Success: false, Error: "falta el contenido del mensaje"}, nil
	}
	if call.Phone == "" {
		return Result{Success: false, Error: "no tengo el teléfono del cliente en esta llamada"}, nil
	}
	if g.whatsappURL == "" {
		return Result{Success: false, Error: "el envío de WhatsApp no está configurado"}, nil
	}

	payload := map[string]interface{}{
		"to":      call.Phone,
		"message": in.Message,
		"source":  "voice-agent",
		"call_id": call.CallSID,
	}

	resp, err := g.messaging.Post(ctx, g.whatsappURL, payload)
	if err != nil {
		return Result{}, fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{
			Success: false,
			Message: fmt.Sprintf("El servicio de mensajería rechazó el envío (%d)", resp.StatusCode),
		}, nil
	}

	return Result{
		Success: true,
		Message: "Mensaje de WhatsApp enviado",
	}, nil
}
