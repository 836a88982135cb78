// Package voice bridges one telephony media-stream websocket to the
// transcription, dialogue and synthesis services.
package voice

import "encoding/json"

// StreamEvent is the envelope for every media-stream JSON frame, inbound
// and outbound. Only the fields for the named event are populated.
type StreamEvent struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
	Stop      *StopPayload  `json:"stop,omitempty"`
}

// StartPayload announces the stream and carries per-call parameters.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid,omitempty"`
	CallSID          string            `json:"callSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
}

// MediaFormat describes the audio encoding on the stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one base64 mu-law frame. Chunk is a legacy alias
// some telephony gateways use instead of Payload.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// Audio returns the base64 audio regardless of which field the gateway used.
func (m *MediaPayload) Audio() string {
	if m.Payload != "" {
		return m.Payload
	}
	return m.Chunk
}

// MarkPayload names a playback checkpoint; the gateway echoes it back once
// all audio queued before it has been played to the caller.
type MarkPayload struct {
	Name string `json:"name"`
}

// StopPayload closes the stream.
type StopPayload struct {
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid,omitempty"`
}

// parseEvent decodes a raw frame. A decode failure is a malformed protocol
// event; callers log and ignore it.
func parseEvent(raw []byte) (*StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
