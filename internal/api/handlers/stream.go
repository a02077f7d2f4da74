package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/voice"
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The carrier connects from its own infrastructure, not a browser
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is the carrier's media-stream wire format
type inboundFrame struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Start     *struct {
		CallSid          string            `json:"callSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark"`
}

type outboundMediaFrame struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type outboundMarkFrame struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// VoiceStream accepts the carrier's media-stream websocket and bridges
// it to the voice gateway: wire frames in, gateway events out. The
// gateway never touches the websocket.
func (h *Handler) VoiceStream(c *gin.Context) {
	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Media stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	in := make(chan voice.Event, 64)
	out := make(chan voice.Event, 256)
	readerStop := make(chan struct{})
	writerStop := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		dead := false
		for {
			select {
			case ev := <-out:
				if dead {
					continue
				}
				if err := conn.WriteJSON(encodeStreamFrame(ev)); err != nil {
					h.logger.Debug("Media stream write failed", zap.Error(err))
					// keep draining so the gateway never blocks
					dead = true
				}
			case <-writerStop:
				return
			}
		}
	}()

	go func() {
		defer close(in)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ev, ok := decodeStreamFrame(data)
			if !ok {
				// malformed or irrelevant frames are ignored
				continue
			}
			select {
			case in <- ev:
			case <-readerStop:
				return
			}
			if ev.Kind == voice.EventStop {
				return
			}
		}
	}()

	h.gateway.HandleStream(c.Request.Context(), in, out)

	close(readerStop)
	close(writerStop)
	<-writerDone
}

func decodeStreamFrame(data []byte) (voice.Event, bool) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return voice.Event{}, false
	}

	switch f.Event {
	case "start":
		if f.Start == nil || f.Start.CallSid == "" {
			return voice.Event{}, false
		}
		return voice.Event{
			Kind:      voice.EventStart,
			CallSID:   f.Start.CallSid,
			StreamSID: f.StreamSid,
			From:      f.Start.CustomParameters["from"],
		}, true
	case "media":
		if f.Media == nil {
			return voice.Event{}, false
		}
		return voice.Event{
			Kind:      voice.EventMedia,
			StreamSID: f.StreamSid,
			Payload:   f.Media.Payload,
		}, true
	case "mark":
		if f.Mark == nil {
			return voice.Event{}, false
		}
		return voice.Event{
			Kind:      voice.EventMark,
			StreamSID: f.StreamSid,
			Mark:      f.Mark.Name,
		}, true
	case "stop":
		return voice.Event{
			Kind:      voice.EventStop,
			StreamSID: f.StreamSid,
		}, true
	default:
		// "connected" and anything the carrier adds later
		return voice.Event{}, false
	}
}

func encodeStreamFrame(ev voice.Event) interface{} {
	if ev.Kind == voice.EventMark {
		frame := outboundMarkFrame{Event: "mark", StreamSid: ev.StreamSID}
		frame.Mark.Name = ev.Mark
		return frame
	}
	frame := outboundMediaFrame{Event: "media", StreamSid: ev.StreamSID}
	frame.Media.Payload = ev.Payload
	return frame
}
