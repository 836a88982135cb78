package models

// BookingRequest is the structured ride request handed to the external
// dispatch system once the caller has confirmed the details.
type BookingRequest struct {
	SessionID   string   `json:"sessionId"`
	Pickup      string   `json:"pickup"`
	Dropoff     string   `json:"dropoff"`
	VehicleType string   `json:"vehicleType"`
	Language    Language `json:"language"`
}

// DispatchResult is the dispatcher's answer to a BookingRequest.
type DispatchResult struct {
	Success   bool   `json:"success"`
	BookingID string `json:"bookingId,omitempty"`
}
