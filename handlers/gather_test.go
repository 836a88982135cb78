package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"cabgo/models"
	"cabgo/services/dialogue"
	"cabgo/services/session"
)

type stubStore struct {
	mu   sync.Mutex
	data map[string]*models.CallSession
	full bool
}

func newStubStore() *stubStore {
	return &stubStore{data: make(map[string]*models.CallSession)}
}

func (s *stubStore) Create(_ context.Context, sess *models.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return session.ErrStoreFull
	}
	s.data[sess.SessionID] = sess
	return nil
}

func (s *stubStore) Get(_ context.Context, id string) (*models.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[id], nil
}

func (s *stubStore) Update(_ context.Context, sess *models.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[sess.SessionID]; !ok {
		return session.ErrNotFound
	}
	s.data[sess.SessionID] = sess
	return nil
}

func (s *stubStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *stubStore) ListActive(_ context.Context, pred func(*models.CallSession) bool) ([]*models.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CallSession
	for _, sess := range s.data {
		if pred == nil || pred(sess) {
			out = append(out, sess)
		}
	}
	return out, nil
}

type stubConversation struct{}

func (stubConversation) Greeting(models.Language) string { return "Hello, where to?" }

func (stubConversation) ProcessTurn(_ context.Context, sess *models.CallSession, transcript string) *dialogue.TurnResult {
	sess.AppendTurn(models.RoleUser, transcript)
	if transcript == "yes" {
		sess.DialogueStep = models.StepBookingProcessing
		return &dialogue.TurnResult{
			Utterance: "Booking now.",
			NextStep:  models.StepBookingProcessing,
			BookingRequest: &models.BookingRequest{
				SessionID: sess.SessionID,
				Pickup:    "Aluva",
				Dropoff:   "Kakkanad",
			},
		}
	}
	sess.DialogueStep = models.StepDropoffLocation
	return &dialogue.TurnResult{Utterance: "And where to?", NextStep: models.StepDropoffLocation}
}

func (stubConversation) CompletionResult(sess *models.CallSession, bookingID string) *dialogue.TurnResult {
	sess.DialogueStep = models.StepCompletion
	return &dialogue.TurnResult{
		Utterance: "Booked, ID " + bookingID + ".",
		NextStep:  models.StepCompletion,
		EndCall:   true,
	}
}

func (stubConversation) DispatchFailedResult(sess *models.CallSession) *dialogue.TurnResult {
	sess.DialogueStep = models.StepConfirmation
	return &dialogue.TurnResult{Utterance: "Could not book, try again?", NextStep: models.StepConfirmation}
}

type stubDispatcher struct {
	result *models.DispatchResult
}

func (d *stubDispatcher) Dispatch(context.Context, *models.BookingRequest) (*models.DispatchResult, error) {
	return d.result, nil
}

type stubRecords struct {
	mu      sync.Mutex
	records []*models.CallRecord
}

func (r *stubRecords) EnqueueCallRecord(record *models.CallRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	return nil
}

func gatherRouter(store *stubStore, disp *stubDispatcher, recs *stubRecords) *gin.Engine {
	gin.SetMode(gin.TestMode)
	hb := &HandlerBundle{
		Store:       store,
		Engine:      stubConversation{},
		Dispatcher:  disp,
		Records:     recs,
		DefaultLang: models.LangEnglish,
	}
	hb.Wire()
	r := gin.New()
	r.POST("/voice/gather", hb.GatherHandler)
	return r
}

func postGather(t *testing.T, r *gin.Engine, body GatherRequest) (*httptest.ResponseRecorder, GatherResponse) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/voice/gather", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp GatherResponse
	if w.Code == http.StatusOK || w.Code == http.StatusServiceUnavailable {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return w, resp
}

func TestGatherNewSessionGetsGreeting(t *testing.T) {
	store := newStubStore()
	r := gatherRouter(store, &stubDispatcher{}, &stubRecords{})

	w, resp := postGather(t, r, GatherRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp.Utterance != "Hello, where to?" || resp.SessionID == "" {
		t.Errorf("response = %+v, want greeting with a session id", resp)
	}
	if sess, _ := store.Get(context.Background(), resp.SessionID); sess == nil {
		t.Error("session was not created")
	}
}

func TestGatherTurnAdvancesSession(t *testing.T) {
	store := newStubStore()
	r := gatherRouter(store, &stubDispatcher{}, &stubRecords{})

	sess := models.NewCallSession("sess-g1", models.LangEnglish)
	sess.DialogueStep = models.StepPickupLocation
	store.Create(context.Background(), sess)

	w, resp := postGather(t, r, GatherRequest{SessionID: "sess-g1", Speech: "from aluva"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp.Step != models.StepDropoffLocation || resp.EndCall {
		t.Errorf("response = %+v", resp)
	}
}

func TestGatherConfirmedBookingCompletesCall(t *testing.T) {
	store := newStubStore()
	recs := &stubRecords{}
	disp := &stubDispatcher{result: &models.DispatchResult{Success: true, BookingID: "BK123"}}
	r := gatherRouter(store, disp, recs)

	sess := models.NewCallSession("sess-g2", models.LangEnglish)
	sess.DialogueStep = models.StepConfirmation
	store.Create(context.Background(), sess)

	w, resp := postGather(t, r, GatherRequest{SessionID: "sess-g2", Speech: "yes"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !resp.EndCall || resp.Step != models.StepCompletion {
		t.Errorf("response = %+v, want completed call", resp)
	}
	if resp.Utterance != "Booked, ID BK123." {
		t.Errorf("utterance = %q", resp.Utterance)
	}
	if sess, _ := store.Get(context.Background(), "sess-g2"); sess != nil {
		t.Error("session should be deleted after completion")
	}
	if len(recs.records) != 1 {
		t.Errorf("records = %d, want 1", len(recs.records))
	}
}

func TestGatherFullStoreSpeaksLinesBusy(t *testing.T) {
	store := newStubStore()
	store.full = true
	r := gatherRouter(store, &stubDispatcher{}, &stubRecords{})

	w, resp := postGather(t, r, GatherRequest{Speech: "hello"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !resp.EndCall || resp.Utterance == "" {
		t.Errorf("response = %+v, want a spoken busy message", resp)
	}
}

func TestGatherRejectsBadJSON(t *testing.T) {
	r := gatherRouter(newStubStore(), &stubDispatcher{}, &stubRecords{})

	req := httptest.NewRequest(http.MethodPost, "/voice/gather", bytes.NewReader([]byte("{nope")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
