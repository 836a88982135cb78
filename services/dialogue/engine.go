// Package dialogue implements the slot-filling conversation state machine.
// The engine owns every deterministic decision: slot merging, step
// transitions, utterance length policy, and the booking hand-off. Only
// utterance understanding is delegated to the intent model.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cabgo/models"
	"cabgo/utils"

	"go.uber.org/zap"
)

// TurnResult is the engine's decision for one caller turn.
type TurnResult struct {
	Utterance      string
	NextStep       models.DialogueStep
	EndCall        bool
	BookingRequest *models.BookingRequest
}

// Engine drives the booking conversation. It is stateless across calls;
// all per-call state lives in the CallSession.
type Engine struct {
	intents  IntentClient
	timeout  time.Duration
	maxWords int
	logger   *zap.Logger
}

// NewEngine returns an Engine delegating understanding to intents. timeout
// bounds each intent call; maxWords bounds every spoken utterance.
func NewEngine(intents IntentClient, timeout time.Duration, maxWords int) *Engine {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if maxWords <= 0 {
		maxWords = 24
	}
	return &Engine{
		intents:  intents,
		timeout:  timeout,
		maxWords: maxWords,
		logger:   utils.GetLogger(),
	}
}

// Greeting returns the opening utterance for a new call.
func (e *Engine) Greeting(lang models.Language) string {
	return Phrase(lang, PhraseGreeting)
}

// ProcessTurn runs one turn: understand the transcript, merge slots,
// choose the next step and the reply. It mutates sess and never panics or
// blocks past the intent timeout; intent failures bounce through
// ERROR_HANDLING and land back on the step the error occurred in.
func (e *Engine) ProcessTurn(ctx context.Context, sess *models.CallSession, transcript string) *TurnResult {
	sess.AppendTurn(models.RoleUser, transcript)

	priorStep := sess.DialogueStep
	if priorStep == models.StepGreeting {
		// The caller has spoken; the greeting step is over either way.
		priorStep = models.StepPickupLocation
	}

	intent, err := e.infer(ctx, sess, transcript)
	if err != nil {
		e.logger.Warn("intent inference failed",
			zap.String("sessionId", sess.SessionID), zap.Error(err))
		sess.DialogueStep = models.StepErrorHandling
		res := &TurnResult{
			Utterance: Phrase(sess.Language, PhraseRetry),
			NextStep:  priorStep,
		}
		return e.finish(sess, res)
	}

	var res *TurnResult
	switch intent.Action {
	case ActionExtractLocation:
		res = e.handleExtract(sess, intent)
	case ActionSetVehicle:
		res = e.handleVehicle(sess, intent)
	case ActionSearchNearby:
		res = e.handleSearchNearby(sess, intent)
	case ActionConfirmBooking:
		res = e.handleConfirm(sess, intent)
	default:
		// Free-text reply: keep collecting whatever is still missing.
		next := nextStepForSlots(sess.Slots)
		res = &TurnResult{Utterance: e.replyOrPrompt(sess, intent.Reply, next), NextStep: next}
	}
	return e.finish(sess, res)
}

// infer calls the intent model with a bounded deadline, retrying once on
// failure before giving up for this turn.
func (e *Engine) infer(ctx context.Context, sess *models.CallSession, transcript string) (*Intent, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		intent, err := e.intents.Infer(callCtx, sess, transcript)
		cancel()
		if err == nil {
			return intent, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// finish applies the shared exit path: history and the step write-back.
// Length policy is applied where model text enters a result, never to the
// fixed phrases, which are authored to phone length and must match their
// pre-warmed renditions byte for byte.
func (e *Engine) finish(sess *models.CallSession, res *TurnResult) *TurnResult {
	sess.AppendTurn(models.RoleAssistant, res.Utterance)
	sess.DialogueStep = res.NextStep
	return res
}

func (e *Engine) handleExtract(sess *models.CallSession, intent *Intent) *TurnResult {
	mergeSlots(&sess.Slots, intent)
	next := nextStepForSlots(sess.Slots)
	return &TurnResult{Utterance: e.replyOrPrompt(sess, intent.Reply, next), NextStep: next}
}

func (e *Engine) handleVehicle(sess *models.CallSession, intent *Intent) *TurnResult {
	mergeSlots(&sess.Slots, intent)
	next := nextStepForSlots(sess.Slots)
	return &TurnResult{Utterance: e.replyOrPrompt(sess, intent.Reply, next), NextStep: next}
}

// handleSearchNearby phrases 0, 1 or the top two place candidates without
// moving the dialogue forward.
func (e *Engine) handleSearchNearby(sess *models.CallSession, intent *Intent) *TurnResult {
	keep := sess.DialogueStep
	if keep == models.StepGreeting {
		keep = models.StepPickupLocation
	}
	var utterance string
	switch {
	case len(intent.Candidates) == 0:
		utterance = Phrase(sess.Language, PhraseNoPlacesFound)
	case len(intent.Candidates) == 1:
		utterance = truncateUtterance(fmt.Sprintf("Did you mean %s?", intent.Candidates[0]), e.maxWords)
	default:
		utterance = truncateUtterance(
			fmt.Sprintf("Did you mean %s or %s?", intent.Candidates[0], intent.Candidates[1]), e.maxWords)
	}
	return &TurnResult{Utterance: utterance, NextStep: keep}
}

func (e *Engine) handleConfirm(sess *models.CallSession, intent *Intent) *TurnResult {
	if !intent.Affirmed {
		// The caller declined; keep the collected slots and walk back to
		// the destination so they can change it.
		sess.Slots.Confirmed = false
		return &TurnResult{
			Utterance: e.replyOrPrompt(sess, intent.Reply, models.StepDropoffLocation),
			NextStep:  models.StepDropoffLocation,
		}
	}

	mergeSlots(&sess.Slots, intent)
	if sess.Slots.PickupLocation == "" || sess.Slots.DropoffLocation == "" {
		// Confirmed=true requires both locations; go collect the gap.
		next := nextStepForSlots(sess.Slots)
		return &TurnResult{Utterance: e.replyOrPrompt(sess, "", next), NextStep: next}
	}

	sess.Slots.Confirmed = true
	return &TurnResult{
		Utterance: Phrase(sess.Language, PhraseProcessing),
		NextStep:  models.StepBookingProcessing,
		BookingRequest: &models.BookingRequest{
			SessionID:   sess.SessionID,
			Pickup:      sess.Slots.PickupLocation,
			Dropoff:     sess.Slots.DropoffLocation,
			VehicleType: sess.Slots.VehicleType,
			Language:    sess.Language,
		},
	}
}

// CompletionResult is the closing turn after the dispatcher accepted the
// booking. The spoken confirmation includes the booking id.
func (e *Engine) CompletionResult(sess *models.CallSession, bookingID string) *TurnResult {
	utterance := fmt.Sprintf("%s Your booking ID is %s. %s",
		Phrase(sess.Language, PhraseBookingOK), bookingID, Phrase(sess.Language, PhraseGoodbye))
	res := &TurnResult{Utterance: utterance, NextStep: models.StepCompletion, EndCall: true}
	sess.AppendTurn(models.RoleAssistant, res.Utterance)
	sess.DialogueStep = res.NextStep
	return res
}

// DispatchFailedResult returns the conversation to confirmation after a
// dispatch failure; the call is not terminated.
func (e *Engine) DispatchFailedResult(sess *models.CallSession) *TurnResult {
	sess.Slots.Confirmed = false
	res := &TurnResult{
		Utterance: Phrase(sess.Language, PhraseBookingFailed),
		NextStep:  models.StepConfirmation,
	}
	sess.AppendTurn(models.RoleAssistant, res.Utterance)
	sess.DialogueStep = res.NextStep
	return res
}

// replyOrPrompt prefers the model's phrasing, falling back to the fixed
// prompt for the step being entered. Model text is not trusted to be phone
// length and is truncated here; the fixed prompts are not.
func (e *Engine) replyOrPrompt(sess *models.CallSession, reply string, next models.DialogueStep) string {
	if strings.TrimSpace(reply) != "" {
		return truncateUtterance(reply, e.maxWords)
	}
	return promptForStep(sess.Language, next)
}

func promptForStep(lang models.Language, step models.DialogueStep) string {
	switch step {
	case models.StepPickupLocation:
		return Phrase(lang, PhraseAskPickup)
	case models.StepDropoffLocation:
		return Phrase(lang, PhraseAskDropoff)
	case models.StepVehicleType:
		return Phrase(lang, PhraseAskVehicle)
	case models.StepConfirmation:
		return Phrase(lang, PhraseConfirm)
	case models.StepBookingProcessing:
		return Phrase(lang, PhraseProcessing)
	default:
		return Phrase(lang, PhraseRetry)
	}
}

// mergeSlots folds extracted fields into the session slots. Non-empty
// values win; an empty extraction never clears a previously filled slot.
func mergeSlots(slots *models.BookingSlots, intent *Intent) {
	if v := strings.TrimSpace(intent.Pickup); v != "" {
		slots.PickupLocation = v
	}
	if v := strings.TrimSpace(intent.Dropoff); v != "" {
		slots.DropoffLocation = v
	}
	if v := strings.TrimSpace(intent.Vehicle); v != "" {
		slots.VehicleType = v
	}
}

// nextStepForSlots is the deterministic step rule: collect pickup, then
// dropoff, then vehicle, then confirm, then book.
func nextStepForSlots(slots models.BookingSlots) models.DialogueStep {
	switch {
	case slots.PickupLocation == "":
		return models.StepPickupLocation
	case slots.DropoffLocation == "":
		return models.StepDropoffLocation
	case slots.VehicleType == "":
		return models.StepVehicleType
	case !slots.Confirmed:
		return models.StepConfirmation
	default:
		return models.StepBookingProcessing
	}
}

// truncateUtterance enforces the phone-call content policy: one sentence,
// bounded word count. The upstream model is not trusted to do this.
func truncateUtterance(s string, maxWords int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if idx := strings.IndexAny(s, ".?!।"); idx >= 0 {
		// Keep only the first sentence unless what follows the terminator
		// is empty anyway.
		_, width := utf8.DecodeRuneInString(s[idx:])
		first := strings.TrimSpace(s[:idx+width])
		if rest := strings.TrimSpace(s[idx+width:]); rest != "" {
			s = first
		}
	}
	words := strings.Fields(s)
	if len(words) > maxWords {
		s = strings.Join(words[:maxWords], " ")
	}
	return s
}
