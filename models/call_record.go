package models

import "time"

// CallRecord is the archived outcome of a finished call, persisted off the
// audio path once the socket has closed.
type CallRecord struct {
	ID         string       `bson:"id" json:"id"`
	SessionID  string       `bson:"sessionId" json:"sessionId"`
	Language   Language     `bson:"language" json:"language"`
	FinalStep  DialogueStep `bson:"finalStep" json:"finalStep"`
	Slots      BookingSlots `bson:"slots" json:"slots"`
	BookingID  string       `bson:"bookingId,omitempty" json:"bookingId,omitempty"`
	Transcript []Turn       `bson:"transcript" json:"transcript"`
	StartedAt  time.Time    `bson:"startedAt" json:"startedAt"`
	EndedAt    time.Time    `bson:"endedAt" json:"endedAt"`
	CreatedAt  time.Time    `bson:"createdAt" json:"createdAt"`
}
