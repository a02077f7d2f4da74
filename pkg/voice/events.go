package voice

// EventKind discriminates media-stream events. The values match the
// transport's wire protocol event names.
type EventKind string

const (
	EventStart EventKind = "start"
	EventMedia EventKind = "media"
	EventStop  EventKind = "stop"
	EventMark  EventKind = "mark"
)

// Event is one media-stream event in either direction. The transport
// handler translates wire JSON to Events and back; the gateway only
// ever sees this type.
type Event struct {
	Kind      EventKind
	CallSID   string
	StreamSID string
	From      string
	Payload   string // base64 μ-law audio (media events)
	Mark      string // playback marker name (mark events)
}
