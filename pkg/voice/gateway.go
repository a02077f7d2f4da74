package voice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/ai"
	"github.com/extractoseum/voice-agent/pkg/audio"
	"github.com/extractoseum/voice-agent/pkg/customer"
	"github.com/extractoseum/voice-agent/pkg/logger"
	"github.com/extractoseum/voice-agent/pkg/metrics"
	"github.com/extractoseum/voice-agent/pkg/session"
	"github.com/extractoseum/voice-agent/pkg/stt"
	"github.com/extractoseum/voice-agent/pkg/tools"
	"github.com/extractoseum/voice-agent/pkg/turns"
)

// TranscriptStream is one live transcription session
type TranscriptStream interface {
	SendAudio(frame []byte) error
	Fragments() <-chan stt.Fragment
	Close() error
}

// Transcriber opens transcription sessions
type Transcriber interface {
	OpenStream(ctx context.Context) (TranscriptStream, error)
	IsAvailable() bool
}

type deepgramTranscriber struct {
	client *stt.Client
}

// NewDeepgramTranscriber adapts the Deepgram client to the gateway's
// transcriber contract.
func NewDeepgramTranscriber(client *stt.Client) Transcriber {
	return deepgramTranscriber{client: client}
}

func (t deepgramTranscriber) OpenStream(ctx context.Context) (TranscriptStream, error) {
	s, err := t.client.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (t deepgramTranscriber) IsAvailable() bool {
	return t.client.IsAvailable()
}

// Synthesizer turns reply text into μ-law audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text, mood string) ([]byte, error)
	SynthesizeNeutral(ctx context.Context, text string) ([]byte, error)
}

// Responder produces the assistant reply for one caller turn
type Responder interface {
	Respond(ctx context.Context, turnText string, history []ai.Message, cust ai.CustomerContext) (string, error)
}

// ResponderFactory binds a responder to one call's tool context
type ResponderFactory func(call tools.Context) Responder

// CallEnder hangs a call up on the carrier side
type CallEnder interface {
	EndCall(callSID string) error
}

// turnTimeout bounds one full turn: model round-trips, tools, synthesis
const turnTimeout = 30 * time.Second

// energySampleEvery is how often inbound frames are sampled for the
// level diagnostic logged at stream teardown. One frame is 20ms.
const energySampleEvery = 50

// Config carries the gateway's collaborators
type Config struct {
	Registry      *session.Registry
	Resolve       func(ctx context.Context, phone string) customer.Resolution
	Transcriber   Transcriber
	Synthesizer   Synthesizer
	NewResponder  ResponderFactory
	Store         Store
	Carrier       CallEnder
	SilenceWindow time.Duration
	Logger        *zap.Logger
}

// Gateway owns the audio side of every live call: it consumes inbound
// media events, feeds transcription, runs the dialogue engine once per
// completed caller turn and streams synthesized replies back out.
type Gateway struct {
	registry      *session.Registry
	resolve       func(ctx context.Context, phone string) customer.Resolution
	transcriber   Transcriber
	synth         Synthesizer
	newResponder  ResponderFactory
	store         Store
	carrier       CallEnder
	silenceWindow time.Duration
	logger        *zap.Logger
}

func NewGateway(cfg Config) *Gateway {
	if cfg.SilenceWindow <= 0 {
		cfg.SilenceWindow = turns.DefaultSilenceWindow
	}
	return &Gateway{
		registry:      cfg.Registry,
		resolve:       cfg.Resolve,
		transcriber:   cfg.Transcriber,
		synth:         cfg.Synthesizer,
		newResponder:  cfg.NewResponder,
		store:         cfg.Store,
		carrier:       cfg.Carrier,
		silenceWindow: cfg.SilenceWindow,
		logger:        cfg.Logger,
	}
}

// callState is the per-stream working set. It lives for exactly one
// HandleStream invocation.
type callState struct {
	sess   *session.Session
	res    customer.Resolution
	stream TranscriptStream
	seg    *turns.Segmenter

	out      chan<- Event
	done     chan struct{}
	doneOnce sync.Once

	frames       int
	energySum    float64
	energySample int
}

// send delivers an outbound event unless the stream has ended. Replies
// computed for a dead call are discarded here, never delivered late.
func (c *callState) send(ev Event) bool {
	select {
	case c.out <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *callState) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// HandleStream drives one media stream from its start event to its stop
// event. It blocks until the stream ends; the transport handler owns
// both channels and keeps draining out until this returns.
func (g *Gateway) HandleStream(ctx context.Context, in <-chan Event, out chan<- Event) {
	var call *callState
	defer func() {
		if call != nil {
			g.teardown(call)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventStart:
				if call != nil {
					g.logger.Warn("Duplicate start event ignored",
						zap.String("call_sid", ev.CallSID),
					)
					continue
				}
				call = g.startCall(ctx, ev, out)
			case EventMedia:
				if call == nil || call.stream == nil {
					// nothing is listening yet (greeting still playing,
					// or transcription never opened)
					continue
				}
				g.pumpFrame(call, ev.Payload)
			case EventMark:
				g.logger.Debug("Playback mark reached", zap.String("mark", ev.Mark))
			case EventStop:
				return
			}
		}
	}
}

func (g *Gateway) startCall(ctx context.Context, ev Event, out chan<- Event) *callState {
	sess := g.registry.Create(ev.CallSID)
	sess.StreamSID = ev.StreamSID
	sess.From = ev.From
	if sess.Direction == "" {
		sess.Direction = "inbound"
	}
	metrics.RecordCallStarted()

	call := &callState{
		sess: sess,
		out:  out,
		done: make(chan struct{}),
	}

	resolveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	call.res = g.resolve(resolveCtx, ev.From)
	cancel()

	sess.CustomerID = call.res.CustomerID
	sess.CustomerName = call.res.Name
	sess.ConversationID = call.res.ConversationID

	g.logger.Info("Call stream started",
		zap.String("call_sid", sess.CallSID),
		logger.MaskPhoneIfPresent("phone", ev.From),
		zap.String("resolution", string(call.res.Status)),
	)

	g.persistCallAsync(call, "in-progress")

	// Greet before transcription opens so the opening line is never
	// treated as caller speech.
	greeting := ai.GreetingFor(ai.FirstName(call.res.Name))
	speakCtx, cancelSpeak := context.WithTimeout(ctx, turnTimeout)
	err := g.speak(speakCtx, call, greeting, "")
	cancelSpeak()
	if err != nil {
		return call
	}

	stream, err := g.transcriber.OpenStream(ctx)
	if err != nil {
		// The call stays up without transcription: the greeting already
		// played and inbound frames are dropped while stream is nil.
		g.logger.Error("Transcription unavailable, call degraded to non-listening",
			zap.String("call_sid", sess.CallSID),
			zap.Error(err),
		)
		return call
	}
	call.stream = stream

	call.seg = turns.NewSegmenter(g.silenceWindow, func(text string) {
		g.processTurn(call, text)
	}, g.logger)

	go g.consumeFragments(call)

	return call
}

// consumeFragments feeds final transcript fragments into the turn
// segmenter until the transcript stream closes.
func (g *Gateway) consumeFragments(call *callState) {
	for frag := range call.stream.Fragments() {
		if !frag.IsFinal {
			continue
		}
		call.seg.AddFragment(frag.Text)
	}
	g.logger.Warn("Transcript stream ended",
		zap.String("call_sid", call.sess.CallSID),
	)
}

func (g *Gateway) pumpFrame(call *callState, payload string) {
	frame, err := audio.DecodePayload(payload)
	if err != nil {
		g.logger.Debug("Undecodable media frame dropped", zap.Error(err))
		return
	}

	call.frames++
	if call.frames%energySampleEvery == 1 {
		call.energySum += audio.PCM16Energy(audio.DecodeMuLawToPCM16(frame))
		call.energySample++
	}

	if err := call.stream.SendAudio(frame); err != nil {
		g.logger.Debug("Audio frame not delivered to transcription", zap.Error(err))
	}
}

// processTurn runs one completed caller turn end to end. It executes on
// the segmenter's emit goroutine; Done releases any turn queued behind
// this one.
func (g *Gateway) processTurn(call *callState, text string) {
	defer call.seg.Done()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	sess := call.sess
	history := toMessages(sess.History(ai.HistoryWindow))

	userTurn := session.Turn{Role: "user", Text: text, Timestamp: time.Now()}
	sess.AppendTurn(userTurn)
	g.saveTurnAsync(call, userTurn)

	mood := ai.ClassifyMood(text)
	responder := g.newResponder(tools.Context{
		CallSID:    sess.CallSID,
		CustomerID: sess.CustomerID,
		Phone:      sess.From,
	})

	reply, err := responder.Respond(ctx, text, history, ai.CustomerContext{
		Identified: call.res.Status == customer.StatusFound,
		Name:       call.res.Name,
		Tier:       call.res.Tier,
		Tags:       call.res.Tags,
	})
	failed := err != nil
	if failed {
		g.logger.Error("Turn ended in apology",
			zap.String("call_sid", sess.CallSID),
			zap.Error(err),
		)
		mood = "" // the apology is spoken in the neutral voice
	}

	assistantTurn := session.Turn{Role: "assistant", Text: reply, Timestamp: time.Now(), Failed: failed}
	sess.AppendTurn(assistantTurn)
	g.saveTurnAsync(call, assistantTurn)
	metrics.RecordTurn(!failed, time.Since(start))

	g.speak(ctx, call, reply, mood)
}

// speak synthesizes text and streams it out in wire-size frames,
// finishing with a named mark so the transport can observe playback.
// When synthesis fails for both the real reply and the canned apology
// there is nothing left to say; the call is hung up.
func (g *Gateway) speak(ctx context.Context, call *callState, text, mood string) error {
	audioData, err := g.synth.Synthesize(ctx, text, mood)
	if err != nil {
		g.logger.Warn("Synthesis failed, falling back to apology",
			zap.String("call_sid", call.sess.CallSID),
			zap.Error(err),
		)
		audioData, err = g.synth.SynthesizeNeutral(ctx, ai.ApologyReply)
		if err != nil {
			g.logger.Error("Synthesis unavailable, hanging up",
				zap.String("call_sid", call.sess.CallSID),
				zap.Error(err),
			)
			g.hangup(call)
			return err
		}
	}

	for _, chunk := range audio.ChunkBytes(audioData, audio.FrameSize) {
		if !call.send(Event{
			Kind:      EventMedia,
			StreamSID: call.sess.StreamSID,
			Payload:   audio.EncodePayload(chunk),
		}) {
			return nil
		}
	}
	call.send(Event{
		Kind:      EventMark,
		StreamSID: call.sess.StreamSID,
		Mark:      "reply-" + uuid.NewString(),
	})
	return nil
}

func (g *Gateway) hangup(call *callState) {
	if g.carrier == nil {
		return
	}
	if err := g.carrier.EndCall(call.sess.CallSID); err != nil {
		g.logger.Error("Carrier hangup failed",
			zap.String("call_sid", call.sess.CallSID),
			zap.Error(err),
		)
	}
}

func (g *Gateway) teardown(call *callState) {
	call.finish()

	if call.stream != nil {
		if err := call.stream.Close(); err != nil {
			g.logger.Debug("Transcript stream close", zap.Error(err))
		}
	}
	if call.seg != nil {
		call.seg.Close()
	}
	if g.registry.Remove(call.sess.CallSID) {
		metrics.RecordStreamDetached()
	}

	var avgLevel float64
	if call.energySample > 0 {
		avgLevel = call.energySum / float64(call.energySample)
	}
	g.logger.Info("Call stream ended",
		zap.String("call_sid", call.sess.CallSID),
		zap.Int("frames", call.frames),
		zap.Float64("avg_inbound_level", avgLevel),
	)
}

func (g *Gateway) persistCallAsync(call *callState, status string) {
	if g.store == nil {
		return
	}
	record := CallRecord{
		CallSID:        call.sess.CallSID,
		Direction:      call.sess.Direction,
		Phone:          call.sess.From,
		CustomerID:     call.sess.CustomerID,
		CustomerName:   call.sess.CustomerName,
		ConversationID: call.sess.ConversationID,
		Status:         status,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.store.UpsertCall(ctx, record); err != nil {
			g.logger.Error("Call record not persisted",
				zap.String("call_sid", record.CallSID),
				zap.Error(err),
			)
		}
	}()
}

// saveTurnAsync persists a turn off the hot path. Failures are logged
// and never delay or abort the live exchange.
func (g *Gateway) saveTurnAsync(call *callState, turn session.Turn) {
	if g.store == nil {
		return
	}
	callSID := call.sess.CallSID
	conversationID := call.sess.ConversationID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.store.SaveTurn(ctx, callSID, conversationID, turn); err != nil {
			g.logger.Error("Turn not persisted",
				zap.String("call_sid", callSID),
				zap.Error(err),
			)
		}
	}()
}

func toMessages(history []session.Turn) []ai.Message {
	out := make([]ai.Message, 0, len(history))
	for _, t := range history {
		out = append(out, ai.TextMessage(t.Role, t.Text))
	}
	return out
}
