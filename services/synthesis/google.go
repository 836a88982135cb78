// File: services/synthesis/google.go
package synthesis

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"cabgo/models"
	"cabgo/utils"
)

// GoogleSynthesizer renders speech with Cloud Text-to-Speech, emitting
// mu-law at the telephony sample rate so the audio can go straight onto
// the media stream.
type GoogleSynthesizer struct {
	client *texttospeech.Client
}

// NewGoogleSynthesizer connects using the service account file.
func NewGoogleSynthesizer(ctx context.Context, credentialsFile string) (*GoogleSynthesizer, error) {
	client, err := texttospeech.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}
	return &GoogleSynthesizer{client: client}, nil
}

// Synthesize renders text in the given language and style.
func (g *GoogleSynthesizer) Synthesize(ctx context.Context, lang models.Language, text string, style Style) ([]byte, error) {
	code, voice := synthesisVoice(lang)
	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Ssml{Ssml: buildSSML(text, style)},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: code,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_MULAW,
			SampleRateHertz: utils.AudioSampleRate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	return resp.AudioContent, nil
}

// Close releases the underlying API client.
func (g *GoogleSynthesizer) Close() error {
	return g.client.Close()
}

var ssmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// buildSSML wraps the escaped text in prosody matching the style hint.
func buildSSML(text string, style Style) string {
	escaped := ssmlEscaper.Replace(text)
	switch style {
	case StyleUpbeat:
		return fmt.Sprintf(`<speak><prosody rate="105%%" pitch="+1st">%s</prosody></speak>`, escaped)
	case StyleApologetic:
		return fmt.Sprintf(`<speak><prosody rate="92%%" pitch="-2st">%s<break time="200ms"/></prosody></speak>`, escaped)
	default:
		return fmt.Sprintf(`<speak>%s</speak>`, escaped)
	}
}

// synthesisVoice picks the locale and a concrete voice per language. Mixed
// Malayalam-English callers get the Malayalam voice, which handles embedded
// English tokens acceptably.
func synthesisVoice(lang models.Language) (code, name string) {
	switch lang {
	case models.LangMalayalam, models.LangManglish:
		return "ml-IN", "ml-IN-Wavenet-A"
	case models.LangHindi:
		return "hi-IN", "hi-IN-Wavenet-D"
	case models.LangTamil:
		return "ta-IN", "ta-IN-Wavenet-A"
	case models.LangTelugu:
		return "te-IN", "te-IN-Standard-A"
	default:
		return "en-IN", "en-IN-Wavenet-D"
	}
}
