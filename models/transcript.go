package models

// TranscriptAlternative is a secondary recognition hypothesis.
type TranscriptAlternative struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TranscriptResult is one recognition event from the speech provider.
// Interim results (IsFinal=false) are diagnostic only; only final results
// are forwarded to the dialogue engine.
type TranscriptResult struct {
	Text         string                  `json:"text"`
	Confidence   float64                 `json:"confidence"`
	IsFinal      bool                    `json:"isFinal"`
	Alternatives []TranscriptAlternative `json:"alternatives,omitempty"`
}
