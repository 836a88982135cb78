package voice

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cabgo/models"
	"cabgo/services/dialogue"
	"cabgo/services/session"
	"cabgo/services/synthesis"
	"cabgo/utils"
)

// State is the bridge lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateStopping
	StateClosed
)

// frameBytes is one outbound media frame: 20ms of mu-law at 8kHz.
const frameBytes = 160

// Socket is the websocket surface the bridge consumes.
type Socket interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// WrapConn adapts a gorilla connection to the Socket interface.
func WrapConn(conn *websocket.Conn) Socket {
	return &wsSocket{conn: conn}
}

type wsSocket struct {
	conn *websocket.Conn
}

func (w *wsSocket) ReadMessage() ([]byte, error) {
	_, msg, err := w.conn.ReadMessage()
	return msg, err
}

func (w *wsSocket) WriteJSON(v any) error { return w.conn.WriteJSON(v) }
func (w *wsSocket) Close() error          { return w.conn.Close() }

// Transcriber is the recognition surface the bridge consumes; satisfied by
// transcription.Bridge.
type Transcriber interface {
	Open(ctx context.Context, lang models.Language, hints []string) error
	PushAudio(frame []byte) error
	Results() <-chan models.TranscriptResult
	Errors() <-chan error
	Close() error
}

// Conversation is the dialogue surface the bridge consumes; satisfied by
// dialogue.Engine.
type Conversation interface {
	Greeting(lang models.Language) string
	ProcessTurn(ctx context.Context, sess *models.CallSession, transcript string) *dialogue.TurnResult
	CompletionResult(sess *models.CallSession, bookingID string) *dialogue.TurnResult
	DispatchFailedResult(sess *models.CallSession) *dialogue.TurnResult
}

// Speaker renders an utterance to mu-law audio; satisfied by
// synthesis.Cache.
type Speaker interface {
	Speak(ctx context.Context, lang models.Language, text string, style synthesis.Style) ([]byte, error)
}

// Dispatcher submits confirmed bookings; satisfied by dispatch.HTTPDispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *models.BookingRequest) (*models.DispatchResult, error)
}

// RecordSink receives the finished call for off-path persistence.
type RecordSink interface {
	EnqueueCallRecord(record *models.CallRecord) error
}

// Deps are the collaborators one bridge needs. Records may be nil.
type Deps struct {
	Store        session.Store
	Engine       Conversation
	Transcriber  Transcriber
	Speaker      Speaker
	Dispatcher   Dispatcher
	Records      RecordSink
	DefaultLang  models.Language
	SpeakTimeout time.Duration

	// CompletionGrace bounds how long a closing utterance may wait for its
	// playback ack before the call is torn down anyway.
	CompletionGrace time.Duration
}

type dispatchOutcome struct {
	sessionID string
	result    *models.DispatchResult
	err       error
}

// Bridge drives one call. All mutation happens on the Run loop goroutine;
// the reader and dispatcher goroutines communicate through channels only.
type Bridge struct {
	sock   Socket
	deps   Deps
	logger *zap.Logger

	state      State
	sess       *models.CallSession
	streamSID  string
	bookingID  string
	listening  bool
	reopened   bool
	endOnMark  bool
	endMark    string
	dispatchCh chan dispatchOutcome
	endCh      chan struct{}
}

// NewBridge wires a bridge for one accepted websocket connection.
func NewBridge(sock Socket, deps Deps) *Bridge {
	if deps.SpeakTimeout <= 0 {
		deps.SpeakTimeout = 800 * time.Millisecond
	}
	if deps.DefaultLang == "" {
		deps.DefaultLang = models.LangEnglish
	}
	if deps.CompletionGrace <= 0 {
		deps.CompletionGrace = 3 * time.Second
	}
	return &Bridge{
		sock:       sock,
		deps:       deps,
		logger:     utils.GetLogger(),
		state:      StateConnecting,
		dispatchCh: make(chan dispatchOutcome, 4),
		endCh:      make(chan struct{}, 1),
	}
}

// State reports the current lifecycle position. Only safe from the Run
// goroutine or after Run returns.
func (b *Bridge) State() State { return b.state }

// Run processes the call until the stream stops, the socket drops, or ctx
// is cancelled. It always leaves the bridge Closed.
func (b *Bridge) Run(ctx context.Context) {
	msgCh := make(chan []byte, 16)
	go b.readLoop(msgCh)

	for b.state != StateClosed {
		select {
		case raw, ok := <-msgCh:
			if !ok {
				b.shutdown(ctx)
				continue
			}
			b.handleMessage(ctx, raw)
		case tr := <-b.deps.Transcriber.Results():
			b.handleTranscript(ctx, tr)
		case err := <-b.deps.Transcriber.Errors():
			b.handleStreamError(ctx, err)
		case out := <-b.dispatchCh:
			b.handleDispatchOutcome(ctx, out)
		case <-b.endCh:
			b.shutdown(ctx)
		case <-ctx.Done():
			b.shutdown(ctx)
		}
	}

	// Drain the reader so its goroutine exits once the socket is closed.
	for range msgCh {
	}
}

func (b *Bridge) readLoop(msgCh chan<- []byte) {
	defer close(msgCh)
	for {
		msg, err := b.sock.ReadMessage()
		if err != nil {
			return
		}
		msgCh <- msg
	}
}

func (b *Bridge) handleMessage(ctx context.Context, raw []byte) {
	ev, err := parseEvent(raw)
	if err != nil || ev.Event == "" {
		b.logger.Warn("ignoring malformed stream event", zap.Error(err))
		return
	}
	switch ev.Event {
	case "connected":
		// Handshake frame; the start event carries everything we need.
	case "start":
		b.handleStart(ctx, ev)
	case "media":
		b.handleMedia(ev)
	case "mark":
		b.handleMark(ctx, ev)
	case "stop":
		b.logger.Info("stream stop received", zap.String("streamSid", b.streamSID))
		b.shutdown(ctx)
	default:
		b.logger.Warn("ignoring unknown stream event", zap.String("event", ev.Event))
	}
}

func (b *Bridge) handleStart(ctx context.Context, ev *StreamEvent) {
	if b.state != StateConnecting || ev.Start == nil {
		b.logger.Warn("ignoring unexpected start event")
		return
	}
	b.streamSID = ev.Start.StreamSID
	if b.streamSID == "" {
		b.streamSID = ev.StreamSID
	}

	lang := b.deps.DefaultLang
	if v, ok := ev.Start.CustomParameters["language"]; ok && v != "" {
		lang = models.Language(v)
	}

	sessionID := ev.Start.CallSID
	if sessionID == "" {
		sessionID = b.streamSID
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess := models.NewCallSession(sessionID, lang)
	if err := b.deps.Store.Create(ctx, sess); err != nil {
		b.logger.Error("rejecting call, session store refused",
			zap.String("sessionId", sessionID), zap.Error(err))
		b.shutdown(ctx)
		return
	}
	b.sess = sess

	if err := b.deps.Transcriber.Open(ctx, lang, locationHints()); err != nil {
		b.logger.Error("failed to open transcription",
			zap.String("sessionId", sessionID), zap.Error(err))
		b.shutdown(ctx)
		return
	}

	b.state = StateStreaming
	b.listening = true
	b.logger.Info("call started",
		zap.String("sessionId", sessionID), zap.String("lang", string(lang)))

	sess.DialogueStep = models.StepPickupLocation
	b.persist(ctx)
	b.speak(ctx, b.deps.Engine.Greeting(lang), synthesis.StyleUpbeat)
}

func (b *Bridge) handleMedia(ev *StreamEvent) {
	if b.state != StateStreaming || ev.Media == nil {
		return
	}
	if !b.listening {
		// The caller's line carries our own playback echo while we speak;
		// discard it until the mark ack.
		return
	}
	audio, err := base64.StdEncoding.DecodeString(ev.Media.Audio())
	if err != nil {
		b.logger.Warn("ignoring undecodable media frame", zap.Error(err))
		return
	}
	if len(audio) == 0 {
		return
	}
	if err := b.deps.Transcriber.PushAudio(audio); err != nil {
		b.logger.Debug("audio push rejected", zap.Error(err))
	}
}

func (b *Bridge) handleMark(ctx context.Context, ev *StreamEvent) {
	if ev.Mark == nil {
		return
	}
	b.listening = true
	if b.endOnMark && ev.Mark.Name == b.endMark {
		// The goodbye finished playing; the call can end now.
		b.shutdown(ctx)
	}
}

func (b *Bridge) handleTranscript(ctx context.Context, tr models.TranscriptResult) {
	if b.state != StateStreaming || b.sess == nil {
		return
	}
	if !tr.IsFinal || tr.Text == "" {
		return
	}
	b.logger.Debug("final transcript",
		zap.String("sessionId", b.sess.SessionID), zap.String("text", tr.Text))

	res := b.deps.Engine.ProcessTurn(ctx, b.sess, tr.Text)
	b.persist(ctx)

	if res.BookingRequest != nil {
		b.startDispatch(ctx, res.BookingRequest)
	}
	if res.EndCall {
		b.speakAndEnd(ctx, res.Utterance, synthesis.StyleNeutral)
		return
	}
	b.speak(ctx, res.Utterance, styleForStep(res.NextStep))
}

// handleStreamError reopens the recognition stream once; a second failure
// ends the call with a spoken apology.
func (b *Bridge) handleStreamError(ctx context.Context, streamErr error) {
	if b.state != StateStreaming || b.sess == nil {
		return
	}
	b.logger.Warn("transcription stream error",
		zap.String("sessionId", b.sess.SessionID), zap.Error(streamErr))

	if err := b.deps.Transcriber.Close(); err != nil {
		b.logger.Debug("transcriber close failed", zap.Error(err))
	}
	if !b.reopened {
		b.reopened = true
		if err := b.deps.Transcriber.Open(ctx, b.sess.Language, locationHints()); err == nil {
			b.logger.Info("transcription stream reopened",
				zap.String("sessionId", b.sess.SessionID))
			return
		}
	}
	b.speakAndEnd(ctx, dialogue.Phrase(b.sess.Language, dialogue.PhraseApology), synthesis.StyleApologetic)
}

func (b *Bridge) startDispatch(ctx context.Context, req *models.BookingRequest) {
	go func() {
		result, err := b.deps.Dispatcher.Dispatch(ctx, req)
		select {
		case b.dispatchCh <- dispatchOutcome{sessionID: req.SessionID, result: result, err: err}:
		default:
			b.logger.Warn("dropping dispatch outcome, bridge not consuming",
				zap.String("sessionId", req.SessionID))
		}
	}()
}

func (b *Bridge) handleDispatchOutcome(ctx context.Context, out dispatchOutcome) {
	if b.state != StateStreaming || b.sess == nil || b.sess.SessionID != out.sessionID {
		// Late outcome for a call that already ended.
		return
	}
	if out.err == nil && out.result != nil && out.result.Success {
		b.bookingID = out.result.BookingID
		res := b.deps.Engine.CompletionResult(b.sess, out.result.BookingID)
		b.persist(ctx)
		b.speakAndEnd(ctx, res.Utterance, synthesis.StyleUpbeat)
		return
	}
	if out.err != nil {
		b.logger.Error("booking dispatch failed",
			zap.String("sessionId", out.sessionID), zap.Error(out.err))
	}
	res := b.deps.Engine.DispatchFailedResult(b.sess)
	b.persist(ctx)
	b.speak(ctx, res.Utterance, synthesis.StyleApologetic)
}

// persist writes the session back, dropping the write when the session was
// deleted underneath us.
func (b *Bridge) persist(ctx context.Context) {
	if b.sess == nil {
		return
	}
	if err := b.deps.Store.Update(ctx, b.sess); err != nil {
		b.logger.Warn("session update dropped",
			zap.String("sessionId", b.sess.SessionID), zap.Error(err))
	}
}

// speak renders the utterance and streams it to the caller, pausing
// listening until the gateway acks the trailing mark.
func (b *Bridge) speak(ctx context.Context, text string, style synthesis.Style) string {
	if text == "" || b.sess == nil {
		return ""
	}
	audio, err := b.render(ctx, text, style)
	if err != nil {
		// Fall back to the pre-warmed apology so the turn is never silent.
		apology := dialogue.Phrase(b.sess.Language, dialogue.PhraseApology)
		if text != apology {
			audio, err = b.render(ctx, apology, synthesis.StyleApologetic)
		}
		if err != nil {
			b.logger.Error("synthesis failed, caller hears silence",
				zap.String("sessionId", b.sess.SessionID), zap.Error(err))
			return ""
		}
	}

	mark := "utt-" + uuid.NewString()
	b.listening = false
	for offset := 0; offset < len(audio); offset += frameBytes {
		end := offset + frameBytes
		if end > len(audio) {
			end = len(audio)
		}
		frame := StreamEvent{
			Event:     "media",
			StreamSID: b.streamSID,
			Media:     &MediaPayload{Payload: base64.StdEncoding.EncodeToString(audio[offset:end])},
		}
		if err := b.sock.WriteJSON(frame); err != nil {
			b.logger.Warn("media write failed", zap.Error(err))
			return ""
		}
	}
	markEv := StreamEvent{Event: "mark", StreamSID: b.streamSID, Mark: &MarkPayload{Name: mark}}
	if err := b.sock.WriteJSON(markEv); err != nil {
		b.logger.Warn("mark write failed", zap.Error(err))
		return ""
	}
	return mark
}

// render bounds each synthesis attempt by the speak timeout and retries a
// failed attempt once before giving up.
func (b *Bridge) render(ctx context.Context, text string, style synthesis.Style) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		speakCtx, cancel := context.WithTimeout(ctx, b.deps.SpeakTimeout)
		audio, err := b.deps.Speaker.Speak(speakCtx, b.sess.Language, text, style)
		cancel()
		if err == nil {
			return audio, nil
		}
		lastErr = err
		b.logger.Warn("synthesis attempt failed",
			zap.String("sessionId", b.sess.SessionID), zap.Error(err))
	}
	return nil, lastErr
}

// speakAndEnd plays a final utterance and closes once the gateway confirms
// playback finished.
func (b *Bridge) speakAndEnd(ctx context.Context, text string, style synthesis.Style) {
	mark := b.speak(ctx, text, style)
	if mark == "" {
		b.shutdown(ctx)
		return
	}
	b.state = StateStopping
	b.endOnMark = true
	b.endMark = mark

	// If the gateway never acks the mark, end the call anyway.
	time.AfterFunc(b.deps.CompletionGrace, func() {
		select {
		case b.endCh <- struct{}{}:
		default:
		}
	})
}

// shutdown tears the call down exactly once: transcription, session, and
// the socket. Safe to call from any state.
func (b *Bridge) shutdown(ctx context.Context) {
	if b.state == StateClosed {
		return
	}
	b.state = StateClosed

	if err := b.deps.Transcriber.Close(); err != nil {
		b.logger.Debug("transcriber close failed", zap.Error(err))
	}
	if b.sess != nil {
		if b.deps.Records != nil {
			if err := b.deps.Records.EnqueueCallRecord(callRecord(b.sess, b.bookingID)); err != nil {
				b.logger.Warn("call record enqueue failed",
					zap.String("sessionId", b.sess.SessionID), zap.Error(err))
			}
		}
		if err := b.deps.Store.Delete(ctx, b.sess.SessionID); err != nil {
			b.logger.Warn("session delete failed",
				zap.String("sessionId", b.sess.SessionID), zap.Error(err))
		}
		b.logger.Info("call ended",
			zap.String("sessionId", b.sess.SessionID),
			zap.String("finalStep", string(b.sess.DialogueStep)))
	}
	if err := b.sock.Close(); err != nil {
		b.logger.Debug("socket close failed", zap.Error(err))
	}
}

func callRecord(sess *models.CallSession, bookingID string) *models.CallRecord {
	return &models.CallRecord{
		SessionID:  sess.SessionID,
		Language:   sess.Language,
		FinalStep:  sess.DialogueStep,
		Slots:      sess.Slots,
		BookingID:  bookingID,
		Transcript: sess.History,
		StartedAt:  sess.StartedAt,
		EndedAt:    time.Now(),
	}
}

// styleForStep picks the speaking manner for a prompt.
func styleForStep(step models.DialogueStep) synthesis.Style {
	switch step {
	case models.StepErrorHandling:
		return synthesis.StyleApologetic
	case models.StepCompletion:
		return synthesis.StyleUpbeat
	default:
		return synthesis.StyleNeutral
	}
}

// locationHints biases recognition toward place vocabulary common on this
// deployment's routes.
func locationHints() []string {
	return []string{
		"airport", "railway station", "bus stand", "junction",
		"Kochi", "Ernakulam", "Aluva", "Kakkanad", "Fort Kochi",
	}
}
