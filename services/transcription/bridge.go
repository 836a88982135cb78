// Package transcription streams telephone audio to the speech provider and
// surfaces interim and final transcripts as channel events.
package transcription

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"cabgo/models"
	"cabgo/utils"
)

// ErrBridgeClosed is returned by PushAudio after Close, or before Open.
var ErrBridgeClosed = errors.New("transcription bridge is closed")

// audioBuffer bounds how many frames may queue between the telephony leg
// and the provider before PushAudio starts dropping.
const audioBuffer = 64

// Bridge carries one call's audio into a recognition stream. Results and
// Errors stay valid across Close/Open cycles, so a consumer can reopen the
// bridge after a provider stream error without re-subscribing.
type Bridge struct {
	rec     Recognizer
	results chan models.TranscriptResult
	errs    chan error
	logger  *zap.Logger

	mu     sync.Mutex
	open   bool
	audio  chan []byte
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBridge returns a closed bridge; call Open before pushing audio.
func NewBridge(rec Recognizer) *Bridge {
	return &Bridge{
		rec:     rec,
		results: make(chan models.TranscriptResult, 16),
		errs:    make(chan error, 4),
		logger:  utils.GetLogger(),
	}
}

// Open starts a recognition stream for lang, optionally biased by phrase
// hints. Opening an already open bridge is a no-op.
func (b *Bridge) Open(ctx context.Context, lang models.Language, hints []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := b.rec.Stream(streamCtx, lang, hints)
	if err != nil {
		cancel()
		return err
	}

	b.open = true
	b.audio = make(chan []byte, audioBuffer)
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.pumpAudio(stream, b.audio)
	go b.pumpResults(stream, b.done)
	return nil
}

// PushAudio queues one mu-law frame for recognition. Frames pushed while
// the provider is backed up are dropped rather than stalling the caller's
// audio leg. The send happens under the mutex so a concurrent Close cannot
// close the channel out from under it; it never blocks, so the lock is
// held only briefly.
func (b *Bridge) PushAudio(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return ErrBridgeClosed
	}
	select {
	case b.audio <- frame:
	default:
		b.logger.Debug("dropping audio frame, recognition backlog full")
	}
	return nil
}

// Results delivers interim and final transcripts in arrival order.
func (b *Bridge) Results() <-chan models.TranscriptResult {
	return b.results
}

// Errors delivers provider stream failures. After an error the bridge must
// be closed and reopened before more audio is accepted.
func (b *Bridge) Errors() <-chan error {
	return b.errs
}

// Close tears down the current stream. It is idempotent and leaves the
// bridge reopenable.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return nil
	}
	b.open = false
	close(b.audio)
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	cancel()
	<-done
	return nil
}

// pumpAudio forwards queued frames onto the stream until the audio channel
// closes, then half-closes so the provider flushes pending results.
func (b *Bridge) pumpAudio(stream RecognizeStream, audio <-chan []byte) {
	for frame := range audio {
		req := &speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: frame,
			},
		}
		if err := stream.Send(req); err != nil {
			// Recv surfaces the underlying stream error; just stop sending.
			b.logger.Debug("audio send failed", zap.Error(err))
			return
		}
	}
	if err := stream.CloseSend(); err != nil {
		b.logger.Debug("close send failed", zap.Error(err))
	}
}

// pumpResults reads recognition responses until the stream ends, reporting
// the first failure on the error channel.
func (b *Bridge) pumpResults(stream RecognizeStream, done chan struct{}) {
	defer close(done)
	for {
		resp, err := stream.Recv()
		if err != nil {
			b.mu.Lock()
			open := b.open
			b.mu.Unlock()
			if open {
				// A failure while the bridge thinks it is open is a
				// provider-side stream error, not a local shutdown.
				select {
				case b.errs <- err:
				default:
				}
			}
			return
		}
		for _, result := range resp.Results {
			if tr, ok := toTranscript(result); ok {
				select {
				case b.results <- tr:
				default:
					b.logger.Warn("dropping transcript, consumer backlog full",
						zap.String("text", tr.Text))
				}
			}
		}
	}
}

// toTranscript converts a provider result, skipping empty recognitions.
func toTranscript(result *speechpb.StreamingRecognitionResult) (models.TranscriptResult, bool) {
	if len(result.Alternatives) == 0 {
		return models.TranscriptResult{}, false
	}
	top := result.Alternatives[0]
	if top.Transcript == "" {
		return models.TranscriptResult{}, false
	}
	tr := models.TranscriptResult{
		Text:       top.Transcript,
		Confidence: float64(top.Confidence),
		IsFinal:    result.IsFinal,
	}
	for _, alt := range result.Alternatives[1:] {
		tr.Alternatives = append(tr.Alternatives, models.TranscriptAlternative{
			Text:       alt.Transcript,
			Confidence: float64(alt.Confidence),
		})
	}
	return tr, true
}
