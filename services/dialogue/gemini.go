// File: services/dialogue/gemini.go
package dialogue

import (
	"context"
	"fmt"
	"strings"

	"cabgo/models"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const systemInstruction = `You are the understanding layer of a phone-based cab booking assistant.
The caller speaks over a noisy telephone line; transcripts may be imperfect.
Given the conversation so far and the current booking slots, respond by
calling exactly one of the declared functions. Keep any reply text short and
suitable for being spoken aloud: one idea, one sentence.`

// GeminiIntentClient implements IntentClient on the Gemini API, using
// function calling to obtain one of the four structured actions.
type GeminiIntentClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiIntentClient builds the client and declares the action schema.
func NewGeminiIntentClient(ctx context.Context, apiKey string) (*GeminiIntentClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("models/gemini-1.5-pro")
	model.SetTemperature(0.2)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	model.Tools = []*genai.Tool{{FunctionDeclarations: actionDeclarations()}}

	return &GeminiIntentClient{client: client, model: model}, nil
}

func actionDeclarations() []*genai.FunctionDeclaration {
	reply := &genai.Schema{
		Type:        genai.TypeString,
		Description: "Short spoken reply to the caller, one sentence.",
	}
	return []*genai.FunctionDeclaration{
		{
			Name:        string(ActionExtractLocation),
			Description: "Extract pickup and/or dropoff locations mentioned by the caller.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"pickup_location":  {Type: genai.TypeString, Description: "Pickup place name, empty if not mentioned."},
					"dropoff_location": {Type: genai.TypeString, Description: "Destination place name, empty if not mentioned."},
					"reply":            reply,
				},
			},
		},
		{
			Name:        string(ActionConfirmBooking),
			Description: "The caller answered a confirmation question with yes or no.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"confirmed": {Type: genai.TypeBoolean, Description: "True if the caller confirmed the booking."},
					"reply":     reply,
				},
				Required: []string{"confirmed"},
			},
		},
		{
			Name:        string(ActionSearchNearby),
			Description: "The place the caller named is ambiguous; return candidate places.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"candidates": {
						Type:        genai.TypeArray,
						Items:       &genai.Schema{Type: genai.TypeString},
						Description: "Candidate place names, best first.",
					},
					"reply": reply,
				},
			},
		},
		{
			Name:        string(ActionSetVehicle),
			Description: "The caller stated a vehicle preference.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"vehicle_type": {Type: genai.TypeString, Description: "One of: auto, sedan, suv."},
					"reply":        reply,
				},
				Required: []string{"vehicle_type"},
			},
		},
	}
}

// Infer sends the recent conversation and slot state to Gemini and maps
// the returned function call (or free text) onto an Intent.
func (g *GeminiIntentClient) Infer(ctx context.Context, sess *models.CallSession, utterance string) (*Intent, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildTurnPrompt(sess, utterance)))
	if err != nil {
		return nil, fmt.Errorf("gemini generate error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	intent := &Intent{}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.FunctionCall:
			applyFunctionCall(intent, p)
		case genai.Text:
			if intent.Reply == "" {
				intent.Reply = strings.TrimSpace(string(p))
			}
		}
	}
	return intent, nil
}

func applyFunctionCall(intent *Intent, call genai.FunctionCall) {
	intent.Action = Action(call.Name)
	intent.Reply = argString(call.Args, "reply")
	switch intent.Action {
	case ActionExtractLocation:
		intent.Pickup = argString(call.Args, "pickup_location")
		intent.Dropoff = argString(call.Args, "dropoff_location")
	case ActionConfirmBooking:
		if v, ok := call.Args["confirmed"].(bool); ok {
			intent.Affirmed = v
		}
	case ActionSearchNearby:
		if raw, ok := call.Args["candidates"].([]any); ok {
			for _, c := range raw {
				if s, ok := c.(string); ok && s != "" {
					intent.Candidates = append(intent.Candidates, s)
				}
			}
		}
	case ActionSetVehicle:
		intent.Vehicle = argString(call.Args, "vehicle_type")
	}
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// buildTurnPrompt lays out the slot state and the last few turns so the
// model sees exactly what the engine knows.
func buildTurnPrompt(sess *models.CallSession, utterance string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Caller language: %s\n", sess.Language)
	fmt.Fprintf(&sb, "Current step: %s\n", sess.DialogueStep)
	fmt.Fprintf(&sb, "Slots: pickup=%q dropoff=%q vehicle=%q confirmed=%t\n",
		sess.Slots.PickupLocation, sess.Slots.DropoffLocation,
		sess.Slots.VehicleType, sess.Slots.Confirmed)
	sb.WriteString("Recent conversation:\n")
	for _, turn := range sess.RecentTurns(models.ContextTurns) {
		fmt.Fprintf(&sb, "  %s: %s\n", turn.Role, turn.Text)
	}
	fmt.Fprintf(&sb, "Caller just said: %q\n", utterance)
	return sb.String()
}

// Close releases the underlying API client.
func (g *GeminiIntentClient) Close() error {
	return g.client.Close()
}
