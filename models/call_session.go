package models

import "time"

// Language identifies the caller's spoken language for recognition and synthesis.
type Language string

const (
	LangEnglish   Language = "en"
	LangMalayalam Language = "ml"
	LangManglish  Language = "ml-en"
	LangHindi     Language = "hi"
	LangTamil     Language = "ta"
	LangTelugu    Language = "te"
)

// DialogueStep is the current position in the booking conversation.
type DialogueStep string

const (
	StepGreeting          DialogueStep = "GREETING"
	StepPickupLocation    DialogueStep = "PICKUP_LOCATION"
	StepDropoffLocation   DialogueStep = "DROPOFF_LOCATION"
	StepVehicleType       DialogueStep = "VEHICLE_TYPE"
	StepConfirmation      DialogueStep = "CONFIRMATION"
	StepBookingProcessing DialogueStep = "BOOKING_PROCESSING"
	StepCompletion        DialogueStep = "COMPLETION"
	StepErrorHandling     DialogueStep = "ERROR_HANDLING"
)

// ValidStep reports whether s is one of the fixed dialogue steps.
func ValidStep(s DialogueStep) bool {
	switch s {
	case StepGreeting, StepPickupLocation, StepDropoffLocation, StepVehicleType,
		StepConfirmation, StepBookingProcessing, StepCompletion, StepErrorHandling:
		return true
	}
	return false
}

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single entry in the conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingSlots holds the details collected across the conversation.
type BookingSlots struct {
	PickupLocation  string `json:"pickupLocation,omitempty"`
	DropoffLocation string `json:"dropoffLocation,omitempty"`
	VehicleType     string `json:"vehicleType,omitempty"`
	Confirmed       bool   `json:"confirmed"`
}

// ContextTurns is how many recent turns are supplied to the intent model.
const ContextTurns = 5

// maxStoredTurns bounds the stored history; older turns are dropped.
const maxStoredTurns = 2 * ContextTurns

// CallSession is the per-call conversation state. Exactly one call bridge
// owns mutation rights for a session at a time.
type CallSession struct {
	SessionID      string       `json:"sessionId"`
	Language       Language     `json:"language"`
	DialogueStep   DialogueStep `json:"dialogueStep"`
	Slots          BookingSlots `json:"slots"`
	History        []Turn       `json:"history"`
	StartedAt      time.Time    `json:"startedAt"`
	LastActivityAt time.Time    `json:"lastActivityAt"`
}

// NewCallSession returns a session positioned at the greeting step.
func NewCallSession(sessionID string, lang Language) *CallSession {
	now := time.Now()
	return &CallSession{
		SessionID:      sessionID,
		Language:       lang,
		DialogueStep:   StepGreeting,
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// AppendTurn records a turn and trims the stored history to its bound.
func (s *CallSession) AppendTurn(role Role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text, Timestamp: time.Now()})
	if len(s.History) > maxStoredTurns {
		s.History = s.History[len(s.History)-maxStoredTurns:]
	}
	s.LastActivityAt = time.Now()
}

// RecentTurns returns the most recent n turns for context construction.
func (s *CallSession) RecentTurns(n int) []Turn {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
