// File: utils/constants.go
package utils

import "time"

// SessionKeyPrefix is the prefix used for Redis call session keys.
const SessionKeyPrefix = "voice:sess:"

// DefaultSessionTTL is the inactivity time-to-live for call sessions.
const DefaultSessionTTL = 30 * time.Minute

// Telephony audio transport constants (single-channel companded PCM).
const (
	AudioSampleRate = 8000
	AudioEncoding   = "audio/x-mulaw"
)
