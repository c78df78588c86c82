package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pairline/pairline-backend/internal/models"
)

func enterWaiting(t *testing.T, store *MemoryStore, id string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.EnsureParticipant(ctx, id, at); err != nil {
		t.Fatal(err)
	}
	if err := store.EnterPool(ctx, id, at); err != nil {
		t.Fatal(err)
	}
}

func votingSession(a, b string, now time.Time) *models.Session {
	ca, cb := models.CanonicalPair(a, b)
	end := now.Add(time.Minute)
	return &models.Session{
		ID:              "sess-" + ca + "-" + cb,
		ParticipantAID:  ca,
		ParticipantBID:  cb,
		Status:          models.SessionStatusVoting,
		VoteWindowStart: &now,
		VoteWindowEnd:   &end,
		CreatedAt:       now,
	}
}

func TestMemoryStore_CreatePairing_RequiresBothWaiting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	enterWaiting(t, store, "alice", now)
	enterWaiting(t, store, "bob", now)
	enterWaiting(t, store, "carol", now)

	if err := store.CreatePairing(ctx, votingSession("alice", "bob", now)); err != nil {
		t.Fatalf("CreatePairing: %v", err)
	}

	// alice는 이미 matched - 어느 쪽이든 다시 페어링할 수 없다
	err := store.CreatePairing(ctx, votingSession("alice", "carol", now))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("re-pairing matched participant = %v, want ErrConflict", err)
	}

	// 거부된 페어링은 아무것도 바꾸지 않는다
	p, _ := store.GetParticipant(ctx, "carol")
	if p.LifecycleState != models.LifecycleWaiting {
		t.Errorf("carol state = %s, want waiting", p.LifecycleState)
	}
	entry, _ := store.GetPoolEntry(ctx, "carol")
	if entry == nil {
		t.Error("carol pool entry removed by refused pairing")
	}
}

func TestMemoryStore_CreatePairing_RequiresPoolEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	enterWaiting(t, store, "alice", now)
	enterWaiting(t, store, "bob", now)
	if err := store.LeavePool(ctx, "bob"); err != nil {
		t.Fatal(err)
	}

	err := store.CreatePairing(ctx, votingSession("alice", "bob", now))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("pairing without pool entry = %v, want ErrConflict", err)
	}
}

func TestMemoryStore_RecordVote_Conflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	enterWaiting(t, store, "alice", now)
	enterWaiting(t, store, "bob", now)
	sess := votingSession("alice", "bob", now)
	if err := store.CreatePairing(ctx, sess); err != nil {
		t.Fatal(err)
	}

	if _, err := store.RecordVote(ctx, sess.ID, "alice", models.VoteYes); err != nil {
		t.Fatalf("RecordVote: %v", err)
	}

	// 같은 슬롯 중복 기록
	if _, err := store.RecordVote(ctx, sess.ID, "alice", models.VotePass); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate vote = %v, want ErrConflict", err)
	}
	// 참가자 아님
	if _, err := store.RecordVote(ctx, sess.ID, "mallory", models.VoteYes); !errors.Is(err, ErrConflict) {
		t.Errorf("outsider vote = %v, want ErrConflict", err)
	}
	// 판정 이후에는 기록 불가
	if err := store.ResolveSession(ctx, sess.ID, models.OutcomeYesIdle, map[string]Disposition{
		"alice": {Requeue: true, Boost: 10},
		"bob":   {},
	}, now); err != nil {
		t.Fatal(err)
	}
	if _, err := store.RecordVote(ctx, sess.ID, "bob", models.VoteYes); !errors.Is(err, ErrConflict) {
		t.Errorf("vote after resolution = %v, want ErrConflict", err)
	}
}

func TestMemoryStore_ResolveSession_Dispositions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	enterWaiting(t, store, "alice", now)
	enterWaiting(t, store, "bob", now)
	sess := votingSession("alice", "bob", now)
	if err := store.CreatePairing(ctx, sess); err != nil {
		t.Fatal(err)
	}

	later := now.Add(time.Minute)
	err := store.ResolveSession(ctx, sess.ID, models.OutcomeYesPass, map[string]Disposition{
		"alice": {Requeue: true, Boost: 10},
		"bob":   {Requeue: true},
	}, later)
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}

	aliceEntry, _ := store.GetPoolEntry(ctx, "alice")
	if aliceEntry == nil || aliceEntry.FairnessScore != 10 {
		t.Errorf("alice entry = %+v, want fairness 10", aliceEntry)
	}
	bobEntry, _ := store.GetPoolEntry(ctx, "bob")
	if bobEntry == nil || bobEntry.FairnessScore != 0 {
		t.Errorf("bob entry = %+v, want fairness 0", bobEntry)
	}

	// 이미 판정된 세션의 재판정은 거부
	err = store.ResolveSession(ctx, sess.ID, models.OutcomeIdleIdle, nil, later)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("double resolve = %v, want ErrConflict", err)
	}
}

func TestMemoryStore_HasRecentPairing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	enterWaiting(t, store, "alice", now)
	enterWaiting(t, store, "bob", now)
	if err := store.CreatePairing(ctx, votingSession("bob", "alice", now)); err != nil {
		t.Fatal(err)
	}

	// 순서와 무관하게 조회된다
	recent, err := store.HasRecentPairing(ctx, "alice", "bob", now.Add(-time.Hour))
	if err != nil || !recent {
		t.Errorf("HasRecentPairing = %v, %v, want true", recent, err)
	}
	recent, _ = store.HasRecentPairing(ctx, "bob", "alice", now.Add(-time.Hour))
	if !recent {
		t.Error("HasRecentPairing not order-independent")
	}

	// 윈도우 밖의 이력은 무시된다
	recent, _ = store.HasRecentPairing(ctx, "alice", "bob", now.Add(time.Hour))
	if recent {
		t.Error("history outside window should not count")
	}
}

func TestMemoryStore_PoolOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	enterWaiting(t, store, "late", now)
	enterWaiting(t, store, "early", now.Add(-time.Minute))

	// boosted는 재입장 처분을 통해 fairness를 얻는다
	enterWaiting(t, store, "boosted", now)
	enterWaiting(t, store, "partner", now)
	sess := votingSession("boosted", "partner", now)
	if err := store.CreatePairing(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err := store.ResolveSession(ctx, sess.ID, models.OutcomeYesPass, map[string]Disposition{
		"boosted": {Requeue: true, Boost: 10},
		"partner": {},
	}, now); err != nil {
		t.Fatal(err)
	}

	entries, err := store.ListPool(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("pool size = %d, want 3", len(entries))
	}
	if entries[0].ParticipantID != "boosted" {
		t.Errorf("first entry = %s, want boosted (highest fairness)", entries[0].ParticipantID)
	}
	if entries[1].ParticipantID != "early" {
		t.Errorf("second entry = %s, want early (tie broken by entry time)", entries[1].ParticipantID)
	}
}
