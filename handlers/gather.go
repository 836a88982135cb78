package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cabgo/models"
	"cabgo/services/dialogue"
	"cabgo/services/session"
	"cabgo/utils"
)

// GatherRequest is one turn on the webhook voice-menu path: the gateway
// has already transcribed the caller's speech.
type GatherRequest struct {
	SessionID string `json:"sessionId"`
	Language  string `json:"language"`
	Speech    string `json:"speech"`
}

// GatherResponse carries the reply text for the gateway to speak.
type GatherResponse struct {
	SessionID string              `json:"sessionId"`
	Utterance string              `json:"utterance"`
	Step      models.DialogueStep `json:"step"`
	EndCall   bool                `json:"endCall"`
}

// gather runs one dialogue turn over plain HTTP. It shares the session
// store and engine with the streaming path; only transcript acquisition
// and reply delivery differ.
func (hb *HandlerBundle) gather(c *gin.Context) {
	logger := getLogger(c)

	var req GatherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid gather request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	lang := hb.DefaultLang
	if req.Language != "" {
		lang = models.Language(req.Language)
	}

	var sess *models.CallSession
	if req.SessionID != "" {
		found, err := hb.Store.Get(ctx, req.SessionID)
		if err != nil {
			utils.JSONError(c, http.StatusInternalServerError, "Session lookup failed", err.Error())
			return
		}
		sess = found
	}

	if sess == nil {
		id := req.SessionID
		if id == "" {
			id = uuid.NewString()
		}
		sess = models.NewCallSession(id, lang)
		if err := hb.Store.Create(ctx, sess); err != nil {
			if errors.Is(err, session.ErrStoreFull) {
				c.JSON(http.StatusServiceUnavailable, GatherResponse{
					Utterance: dialogue.Phrase(lang, dialogue.PhraseLinesBusy),
					EndCall:   true,
				})
				return
			}
			utils.JSONError(c, http.StatusInternalServerError, "Session create failed", err.Error())
			return
		}
		sess.DialogueStep = models.StepPickupLocation
		if err := hb.Store.Update(ctx, sess); err != nil {
			logger.Warn("Session update dropped", zap.Error(err))
		}
		// A fresh session with no speech yet gets the greeting.
		if req.Speech == "" {
			c.JSON(http.StatusOK, GatherResponse{
				SessionID: sess.SessionID,
				Utterance: hb.Engine.Greeting(lang),
				Step:      sess.DialogueStep,
			})
			return
		}
	}

	if req.Speech == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing speech"})
		return
	}

	res := hb.Engine.ProcessTurn(ctx, sess, req.Speech)
	if err := hb.Store.Update(ctx, sess); err != nil {
		logger.Warn("Session update dropped",
			zap.String("sessionId", sess.SessionID), zap.Error(err))
	}

	// The webhook path cannot wait for playback, so a confirmed booking is
	// dispatched synchronously and the outcome spoken in the same reply.
	var bookingID string
	if res.BookingRequest != nil {
		result, err := hb.Dispatcher.Dispatch(ctx, res.BookingRequest)
		if err != nil || result == nil || !result.Success {
			if err != nil {
				logger.Error("Booking dispatch failed",
					zap.String("sessionId", sess.SessionID), zap.Error(err))
			}
			res = hb.Engine.DispatchFailedResult(sess)
		} else {
			bookingID = result.BookingID
			res = hb.Engine.CompletionResult(sess, bookingID)
		}
		if err := hb.Store.Update(ctx, sess); err != nil {
			logger.Warn("Session update dropped", zap.Error(err))
		}
	}

	if res.EndCall {
		if hb.Records != nil {
			record := &models.CallRecord{
				SessionID:  sess.SessionID,
				Language:   sess.Language,
				FinalStep:  sess.DialogueStep,
				Slots:      sess.Slots,
				BookingID:  bookingID,
				Transcript: sess.History,
				StartedAt:  sess.StartedAt,
				EndedAt:    sess.LastActivityAt,
			}
			if err := hb.Records.EnqueueCallRecord(record); err != nil {
				logger.Warn("Call record enqueue failed", zap.Error(err))
			}
		}
		if err := hb.Store.Delete(ctx, sess.SessionID); err != nil {
			logger.Warn("Session delete failed", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, GatherResponse{
		SessionID: sess.SessionID,
		Utterance: res.Utterance,
		Step:      sess.DialogueStep,
		EndCall:   res.EndCall,
	})
}
