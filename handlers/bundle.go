// File: cabgo/handlers/bundle.go
package handlers

import (
	"time"

	"cabgo/models"
	"cabgo/services/session"
	"cabgo/services/transcription"
	"cabgo/services/voice"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups the voice endpoint handlers and their shared
// collaborators into one struct.
type HandlerBundle struct {
	Store       session.Store
	Engine      voice.Conversation
	Recognizer  transcription.Recognizer
	Speaker     voice.Speaker
	Dispatcher  voice.Dispatcher
	Records     voice.RecordSink
	DefaultLang models.Language

	SpeakTimeout    time.Duration
	CompletionGrace time.Duration

	// Voice endpoints
	InboundCallHandler gin.HandlerFunc
	MediaStreamHandler gin.HandlerFunc
	GatherHandler      gin.HandlerFunc
}

// Wire fills the handler funcs from the bundle's collaborators.
func (hb *HandlerBundle) Wire() {
	hb.InboundCallHandler = hb.inboundCall
	hb.MediaStreamHandler = hb.mediaStream
	hb.GatherHandler = hb.gather
}
