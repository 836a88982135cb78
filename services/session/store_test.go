package session

import (
	"context"
	"testing"
	"time"

	"cabgo/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestStore(t *testing.T, maxActive int) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, 30*time.Minute, maxActive, nil), mr
}

func TestCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	sess := models.NewCallSession("CA001", models.LangEnglish)
	sess.Slots.PickupLocation = "Kochi airport"
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "CA001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got absent")
	}
	if got.Slots.PickupLocation != "Kochi airport" {
		t.Errorf("pickup = %q, want %q", got.Slots.PickupLocation, "Kochi airport")
	}
	if got.DialogueStep != models.StepGreeting {
		t.Errorf("step = %q, want %q", got.DialogueStep, models.StepGreeting)
	}
}

func TestGetAbsent(t *testing.T) {
	store, _ := newTestStore(t, 0)

	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected absent, got %+v", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t, 0)
	ctx := context.Background()

	sess := models.NewCallSession("CA002", models.LangHindi)
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mr.FastForward(31 * time.Minute)

	got, err := store.Get(ctx, "CA002")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("session should have expired")
	}
}

func TestWriteResetsTTL(t *testing.T) {
	store, mr := newTestStore(t, 0)
	ctx := context.Background()

	sess := models.NewCallSession("CA003", models.LangTamil)
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Just short of expiry, then a write; the clock must restart.
	mr.FastForward(29 * time.Minute)
	sess.Slots.DropoffLocation = "Fort Kochi"
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update: %v", err)
	}
	mr.FastForward(29 * time.Minute)

	got, err := store.Get(ctx, "CA003")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("session expired despite intervening write")
	}
	if got.Slots.DropoffLocation != "Fort Kochi" {
		t.Errorf("dropoff = %q, want %q", got.Slots.DropoffLocation, "Fort Kochi")
	}
}

func TestUpdateAfterDeleteIsDropped(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	sess := models.NewCallSession("CA004", models.LangEnglish)
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Delete(ctx, "CA004"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// A late write must not resurrect a deleted session.
	if err := store.Update(ctx, sess); err != ErrNotFound {
		t.Fatalf("Update after delete = %v, want ErrNotFound", err)
	}
	got, _ := store.Get(ctx, "CA004")
	if got != nil {
		t.Error("deleted session came back after stale update")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestSessionCeiling(t *testing.T) {
	store, _ := newTestStore(t, 2)
	ctx := context.Background()

	if err := store.Create(ctx, models.NewCallSession("CA005", models.LangEnglish)); err != nil {
		t.Fatalf("Create 1: %v", err)
	}
	if err := store.Create(ctx, models.NewCallSession("CA006", models.LangEnglish)); err != nil {
		t.Fatalf("Create 2: %v", err)
	}
	if err := store.Create(ctx, models.NewCallSession("CA007", models.LangEnglish)); err != ErrStoreFull {
		t.Fatalf("Create past ceiling = %v, want ErrStoreFull", err)
	}
}

func TestListActive(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	en := models.NewCallSession("CA008", models.LangEnglish)
	ml := models.NewCallSession("CA009", models.LangMalayalam)
	if err := store.Create(ctx, en); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, ml); err != nil {
		t.Fatalf("Create: %v", err)
	}

	all, err := store.ListActive(ctx, nil)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}

	mlOnly, err := store.ListActive(ctx, func(s *models.CallSession) bool {
		return s.Language == models.LangMalayalam
	})
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(mlOnly) != 1 || mlOnly[0].SessionID != "CA009" {
		t.Errorf("predicate filtering returned %+v", mlOnly)
	}
}

func TestSessionIsolation(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	a := models.NewCallSession("CA010", models.LangEnglish)
	a.Slots.PickupLocation = "Aluva"
	b := models.NewCallSession("CA011", models.LangEnglish)
	b.Slots.PickupLocation = "Vyttila"
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	gotA, _ := store.Get(ctx, "CA010")
	gotB, _ := store.Get(ctx, "CA011")
	if gotA.Slots.PickupLocation != "Aluva" || gotB.Slots.PickupLocation != "Vyttila" {
		t.Errorf("sessions observed each other's slots: %+v / %+v", gotA.Slots, gotB.Slots)
	}
}

func TestDegradedBackingStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	errs := make(chan error, 4)
	store := NewRedisStore(client, time.Minute, 0, errs)
	ctx := context.Background()

	sess := models.NewCallSession("CA012", models.LangEnglish)
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mr.Close()

	// Reads degrade to absent, writes to no-ops; errors land on the channel.
	got, err := store.Get(ctx, "CA012")
	if err != nil || got != nil {
		t.Errorf("Get during outage = (%+v, %v), want (nil, nil)", got, err)
	}
	if err := store.Update(ctx, sess); err != nil {
		t.Errorf("Update during outage = %v, want nil", err)
	}
	select {
	case <-errs:
	default:
		t.Error("expected backing-store error on the error channel")
	}
}
