package dialogue

import (
	"context"

	"cabgo/models"
)

// Action is one of the fixed structured actions the intent model may return.
type Action string

const (
	ActionExtractLocation Action = "extractLocationData"
	ActionConfirmBooking  Action = "confirmBookingDetails"
	ActionSearchNearby    Action = "searchNearbyPlaces"
	ActionSetVehicle      Action = "setVehiclePreference"
)

// Intent is the structured understanding of one caller utterance. A zero
// Action with a non-empty Reply means the model answered in free text.
type Intent struct {
	Action     Action
	Reply      string   // model-suggested utterance, subject to engine truncation
	Pickup     string   // extractLocationData
	Dropoff    string   // extractLocationData
	Vehicle    string   // setVehiclePreference
	Affirmed   bool     // confirmBookingDetails: the caller said yes
	Candidates []string // searchNearbyPlaces disambiguation results
}

// IntentClient delegates utterance understanding to the language-model
// service. Implementations must honor ctx deadlines; the engine treats any
// error, including timeouts, as recoverable.
type IntentClient interface {
	Infer(ctx context.Context, sess *models.CallSession, utterance string) (*Intent, error)
}
