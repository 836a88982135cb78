package transcription

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"cabgo/models"
)

// fakeStream replays scripted responses and records sent frames.
type fakeStream struct {
	mu        sync.Mutex
	responses []*speechpb.StreamingRecognizeResponse
	recvErr   error
	sent      [][]byte
	closed    bool
	wake      chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{wake: make(chan struct{}, 16)}
}

func (f *fakeStream) queue(resp *speechpb.StreamingRecognizeResponse) {
	f.mu.Lock()
	f.responses = append(f.responses, resp)
	f.mu.Unlock()
	f.wake <- struct{}{}
}

func (f *fakeStream) fail(err error) {
	f.mu.Lock()
	f.recvErr = err
	f.mu.Unlock()
	f.wake <- struct{}{}
}

func (f *fakeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	if audio, ok := req.StreamingRequest.(*speechpb.StreamingRecognizeRequest_AudioContent); ok {
		f.mu.Lock()
		f.sent = append(f.sent, audio.AudioContent)
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	for {
		f.mu.Lock()
		if len(f.responses) > 0 {
			resp := f.responses[0]
			f.responses = f.responses[1:]
			f.mu.Unlock()
			return resp, nil
		}
		if f.recvErr != nil {
			err := f.recvErr
			f.mu.Unlock()
			return nil, err
		}
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return nil, io.EOF
		}
		<-f.wake
	}
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wake <- struct{}{}
	return nil
}

// fakeRecognizer hands out one fake stream per Stream call.
type fakeRecognizer struct {
	mu      sync.Mutex
	streams []*fakeStream
	langs   []models.Language
}

func (f *fakeRecognizer) Stream(_ context.Context, lang models.Language, _ []string) (RecognizeStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := newFakeStream()
	f.streams = append(f.streams, s)
	f.langs = append(f.langs, lang)
	return s, nil
}

func (f *fakeRecognizer) Close() error { return nil }

func (f *fakeRecognizer) current() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

func recognitionResponse(text string, isFinal bool) *speechpb.StreamingRecognizeResponse {
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{
			IsFinal: isFinal,
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{
				Transcript: text,
				Confidence: 0.9,
			}},
		}},
	}
}

func waitResult(t *testing.T, b *Bridge) models.TranscriptResult {
	t.Helper()
	select {
	case tr := <-b.Results():
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a transcript")
		return models.TranscriptResult{}
	}
}

func TestInterimThenFinalDelivery(t *testing.T) {
	rec := &fakeRecognizer{}
	b := NewBridge(rec)
	if err := b.Open(context.Background(), models.LangEnglish, nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	stream := rec.current()
	stream.queue(recognitionResponse("kochi", false))
	stream.queue(recognitionResponse("kochi airport", true))

	first := waitResult(t, b)
	if first.IsFinal || first.Text != "kochi" {
		t.Errorf("first result = %+v, want interim kochi", first)
	}
	second := waitResult(t, b)
	if !second.IsFinal || second.Text != "kochi airport" {
		t.Errorf("second result = %+v, want final kochi airport", second)
	}
}

func TestAudioFramesReachTheStream(t *testing.T) {
	rec := &fakeRecognizer{}
	b := NewBridge(rec)
	if err := b.Open(context.Background(), models.LangEnglish, nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	frame := []byte{0x7f, 0x7f, 0x7f}
	if err := b.PushAudio(frame); err != nil {
		t.Fatalf("push: %v", err)
	}

	stream := rec.current()
	deadline := time.Now().Add(2 * time.Second)
	for {
		stream.mu.Lock()
		n := len(stream.sent)
		stream.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("frame never reached the stream")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamErrorSurfacesAndBridgeReopens(t *testing.T) {
	rec := &fakeRecognizer{}
	b := NewBridge(rec)
	if err := b.Open(context.Background(), models.LangManglish, nil); err != nil {
		t.Fatalf("open: %v", err)
	}

	rec.current().fail(errors.New("stream reset"))

	select {
	case err := <-b.Errors():
		if err == nil {
			t.Fatal("expected a non-nil stream error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the stream error")
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Open(context.Background(), models.LangManglish, nil); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()

	// The reopened stream keeps feeding the same result channel.
	rec.current().queue(recognitionResponse("ernakulam", true))
	tr := waitResult(t, b)
	if tr.Text != "ernakulam" || !tr.IsFinal {
		t.Errorf("post-reopen result = %+v", tr)
	}
	if len(rec.streams) != 2 {
		t.Errorf("stream count = %d, want 2", len(rec.streams))
	}
}

func TestCloseIsIdempotentAndRejectsAudio(t *testing.T) {
	rec := &fakeRecognizer{}
	b := NewBridge(rec)
	if err := b.Open(context.Background(), models.LangHindi, nil); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := b.PushAudio([]byte{0x00}); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("push after close = %v, want ErrBridgeClosed", err)
	}
}

func TestConcurrentPushAndClose(t *testing.T) {
	rec := &fakeRecognizer{}
	b := NewBridge(rec)
	if err := b.Open(context.Background(), models.LangEnglish, nil); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Hammer PushAudio from another goroutine while Close tears the
	// stream down; a push racing the channel close must not panic.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if err := b.PushAudio([]byte{0x7f}); err != nil {
				if !errors.Is(err, ErrBridgeClosed) {
					t.Errorf("push = %v, want nil or ErrBridgeClosed", err)
				}
				return
			}
		}
	}()
	time.Sleep(time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()

	if err := b.PushAudio([]byte{0x00}); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("push after close = %v, want ErrBridgeClosed", err)
	}
}

func TestPushBeforeOpenReturnsClosed(t *testing.T) {
	b := NewBridge(&fakeRecognizer{})
	if err := b.PushAudio([]byte{0x00}); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("push before open = %v, want ErrBridgeClosed", err)
	}
}

func TestRecognitionLanguageMapping(t *testing.T) {
	cases := []struct {
		lang      models.Language
		primary   string
		alternate string
	}{
		{models.LangEnglish, "en-IN", ""},
		{models.LangMalayalam, "ml-IN", ""},
		{models.LangManglish, "ml-IN", "en-IN"},
		{models.LangHindi, "hi-IN", ""},
		{models.LangTamil, "ta-IN", ""},
		{models.LangTelugu, "te-IN", ""},
	}
	for _, tc := range cases {
		primary, alternates := recognitionLanguages(tc.lang)
		if primary != tc.primary {
			t.Errorf("%s: primary = %s, want %s", tc.lang, primary, tc.primary)
		}
		if tc.alternate == "" && len(alternates) != 0 {
			t.Errorf("%s: unexpected alternates %v", tc.lang, alternates)
		}
		if tc.alternate != "" && (len(alternates) != 1 || alternates[0] != tc.alternate) {
			t.Errorf("%s: alternates = %v, want [%s]", tc.lang, alternates, tc.alternate)
		}
	}
}
