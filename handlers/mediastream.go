package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cabgo/services/transcription"
	"cabgo/services/voice"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The telephony gateway sets no browser origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundCall answers the telephony webhook for a new call with TwiML that
// connects the call's audio to the media-stream socket.
func (hb *HandlerBundle) inboundCall(c *gin.Context) {
	logger := getLogger(c)

	scheme := "wss"
	if c.Request.TLS == nil && c.GetHeader("X-Forwarded-Proto") != "https" {
		scheme = "ws"
	}
	streamURL := fmt.Sprintf("%s://%s/voice/stream", scheme, c.Request.Host)

	logger.Info("Inbound call", zap.String("streamUrl", streamURL),
		zap.String("from", c.PostForm("From")))

	twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%s">
      <Parameter name="language" value="%s"/>
    </Stream>
  </Connect>
</Response>`, streamURL, hb.DefaultLang)

	c.Data(http.StatusOK, "application/xml", []byte(twiml))
}

// mediaStream upgrades the connection and runs one call bridge until the
// stream stops or the socket drops.
func (hb *HandlerBundle) mediaStream(c *gin.Context) {
	logger := getLogger(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Websocket upgrade failed", zap.Error(err))
		return
	}

	bridge := voice.NewBridge(voice.WrapConn(conn), voice.Deps{
		Store:           hb.Store,
		Engine:          hb.Engine,
		Transcriber:     transcription.NewBridge(hb.Recognizer),
		Speaker:         hb.Speaker,
		Dispatcher:      hb.Dispatcher,
		Records:         hb.Records,
		DefaultLang:     hb.DefaultLang,
		SpeakTimeout:    hb.SpeakTimeout,
		CompletionGrace: hb.CompletionGrace,
	})
	bridge.Run(c.Request.Context())
}
