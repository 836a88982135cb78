// File: services/transcription/google.go
package transcription

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"cabgo/models"
	"cabgo/utils"
)

// RecognizeStream is the bidirectional recognition stream surface the
// bridge consumes. It matches the provider's grpc stream.
type RecognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// Recognizer opens recognition streams against the provider.
type Recognizer interface {
	Stream(ctx context.Context, lang models.Language, hints []string) (RecognizeStream, error)
	Close() error
}

// googleRecognizer is the production Recognizer on Cloud Speech-to-Text.
type googleRecognizer struct {
	client *speech.Client
}

// NewGoogleRecognizer connects using the service account file.
func NewGoogleRecognizer(ctx context.Context, credentialsFile string) (Recognizer, error) {
	client, err := speech.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &googleRecognizer{client: client}, nil
}

// Stream opens a streaming session and sends the configuration frame. The
// caller pushes audio frames afterwards.
func (g *googleRecognizer) Stream(ctx context.Context, lang models.Language, hints []string) (RecognizeStream, error) {
	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open recognition stream: %w", err)
	}

	primary, alternates := recognitionLanguages(lang)
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_MULAW,
		SampleRateHertz:            utils.AudioSampleRate,
		LanguageCode:               primary,
		AlternativeLanguageCodes:   alternates,
		EnableAutomaticPunctuation: true,
		Model:                      "phone_call",
		UseEnhanced:                true,
	}
	if len(hints) > 0 {
		cfg.SpeechContexts = []*speechpb.SpeechContext{{Phrases: hints}}
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         cfg,
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send recognition config: %w", err)
	}
	return stream, nil
}

func (g *googleRecognizer) Close() error {
	return g.client.Close()
}

// recognitionLanguages maps the session language onto provider locale
// codes. Mixed Malayalam-English callers get Malayalam as the primary with
// English as an alternate so the recognizer can switch mid-utterance.
func recognitionLanguages(lang models.Language) (primary string, alternates []string) {
	switch lang {
	case models.LangMalayalam:
		return "ml-IN", nil
	case models.LangManglish:
		return "ml-IN", []string{"en-IN"}
	case models.LangHindi:
		return "hi-IN", nil
	case models.LangTamil:
		return "ta-IN", nil
	case models.LangTelugu:
		return "te-IN", nil
	default:
		return "en-IN", nil
	}
}
