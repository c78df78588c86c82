package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pairline/pairline-backend/internal/models"
)

func TestLivenessService_Heartbeat_RegistersUnknown(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if err := env.liveness.Heartbeat(ctx, "alice"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	p, err := env.store.GetParticipant(ctx, "alice")
	if err != nil || p == nil {
		t.Fatalf("GetParticipant: %v, %v", p, err)
	}
	if p.LifecycleState != models.LifecycleIdle {
		t.Errorf("new participant state = %s, want idle", p.LifecycleState)
	}
}

func TestLivenessService_IsInCooldown(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()
	now := time.Now()

	sessionID := env.pairUp(t, "alice", "bob")
	if err := env.liveness.ApplyCooldown(ctx, sessionID, "alice", now); err != nil {
		t.Fatalf("ApplyCooldown: %v", err)
	}

	inCooldown, err := env.liveness.IsInCooldown(ctx, "alice", now)
	if err != nil {
		t.Fatalf("IsInCooldown: %v", err)
	}
	if !inCooldown {
		t.Error("expected alice to be in cooldown")
	}

	// 만료 후에는 쿨다운이 아니다
	after := now.Add(env.cfg.CooldownDuration + time.Second)
	inCooldown, err = env.liveness.IsInCooldown(ctx, "alice", after)
	if err != nil {
		t.Fatalf("IsInCooldown after expiry: %v", err)
	}
	if inCooldown {
		t.Error("expired cooldown should not block")
	}

	// 상대는 쿨다운 없이 idle 복귀
	inCooldown, _ = env.liveness.IsInCooldown(ctx, "bob", now)
	if inCooldown {
		t.Error("partner should not be in cooldown")
	}
	p, _ := env.store.GetParticipant(ctx, "bob")
	if p.LifecycleState != models.LifecycleIdle {
		t.Errorf("partner state = %s, want idle", p.LifecycleState)
	}
}

func TestLivenessService_SweepStalePool(t *testing.T) {
	cfg := testConfig()
	cfg.StaleAfter = 45 * time.Second
	env := newTestEnv(cfg)
	ctx := context.Background()
	now := time.Now()

	env.dir.Put(openProfile("fresh"))
	env.dir.Put(openProfile("stale"))
	env.enterAt(t, "fresh", now)
	env.enterAt(t, "stale", now.Add(-2*time.Hour))

	evicted := env.liveness.SweepStalePool(ctx)
	if evicted != 1 {
		t.Fatalf("SweepStalePool = %d, want 1", evicted)
	}

	p, _ := env.store.GetParticipant(ctx, "stale")
	if p.LifecycleState != models.LifecycleIdle {
		t.Errorf("stale participant state = %s, want idle", p.LifecycleState)
	}
	entry, _ := env.store.GetPoolEntry(ctx, "stale")
	if entry != nil {
		t.Error("stale pool entry not removed")
	}

	freshEntry, _ := env.store.GetPoolEntry(ctx, "fresh")
	if freshEntry == nil {
		t.Error("fresh participant evicted")
	}
}

func TestLivenessService_SweepStalePool_NeverTouchesMatched(t *testing.T) {
	cfg := testConfig()
	cfg.StaleAfter = 45 * time.Second
	env := newTestEnv(cfg)
	ctx := context.Background()

	sessionID := env.pairUp(t, "alice", "bob")

	// 매칭된 참가자의 heartbeat이 끊겨도 stale 스윕은 건드리지 않는다
	past := time.Now().Add(-2 * time.Hour)
	if err := env.store.UpdateHeartbeat(ctx, "alice", past); err != nil {
		t.Fatal(err)
	}

	if evicted := env.liveness.SweepStalePool(ctx); evicted != 0 {
		t.Fatalf("SweepStalePool = %d, want 0", evicted)
	}

	p, _ := env.store.GetParticipant(ctx, "alice")
	if p.LifecycleState != models.LifecycleMatched {
		t.Errorf("matched participant state = %s, want matched", p.LifecycleState)
	}
	sess, _ := env.store.GetSession(ctx, sessionID)
	if sess.Status != models.SessionStatusVoting {
		t.Errorf("session status = %s, want voting", sess.Status)
	}
}

func TestLivenessService_SweepDisconnected(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	sessionID := env.pairUp(t, "alice", "bob")

	// alice의 연결이 끊긴 상황
	past := time.Now().Add(-env.cfg.DisconnectAfter - time.Minute)
	if err := env.store.UpdateHeartbeat(ctx, "alice", past); err != nil {
		t.Fatal(err)
	}

	cancelled := env.liveness.SweepDisconnected(ctx)
	if cancelled != 1 {
		t.Fatalf("SweepDisconnected = %d, want 1", cancelled)
	}

	sess, _ := env.store.GetSession(ctx, sessionID)
	if sess.Status != models.SessionStatusCancelled {
		t.Errorf("session status = %s, want cancelled", sess.Status)
	}

	// 끊긴 쪽은 쿨다운, 상대는 자유롭게 재입장 가능
	if inCooldown, _ := env.liveness.IsInCooldown(ctx, "alice", time.Now()); !inCooldown {
		t.Error("disconnected participant should be in cooldown")
	}
	if err := env.pool.Enter(ctx, "alice"); !errors.Is(err, ErrInCooldown) {
		t.Errorf("enter during cooldown = %v, want ErrInCooldown", err)
	}
	if err := env.pool.Enter(ctx, "bob"); err != nil {
		t.Errorf("partner re-enter = %v, want success", err)
	}
}

func TestLivenessService_SweepDisconnected_HealthySessionUntouched(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	sessionID := env.pairUp(t, "alice", "bob")

	if cancelled := env.liveness.SweepDisconnected(ctx); cancelled != 0 {
		t.Fatalf("SweepDisconnected = %d, want 0", cancelled)
	}

	sess, _ := env.store.GetSession(ctx, sessionID)
	if !sess.Active() {
		t.Errorf("healthy session status = %s, want active", sess.Status)
	}
}
