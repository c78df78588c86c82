package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pairline/pairline-backend/internal/models"
)

func newTestReconciler(env *testEnv) *Reconciler {
	return NewReconciler(env.pairing, env.outcomes, env.liveness, env.cfg.ReconcileInterval, zap.NewNop())
}

func TestReconciler_RunOnce_EndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.StaleAfter = 45 * time.Second
	env := newTestEnv(cfg)
	ctx := context.Background()
	now := time.Now()

	// 만료된 voting 세션 하나
	expiredID := env.makeExpiredSession(t, "alice", "bob")
	if _, err := env.store.RecordVote(ctx, expiredID, "alice", models.VoteYes); err != nil {
		t.Fatal(err)
	}

	// heartbeat이 끊긴 대기자 하나
	env.dir.Put(openProfile("sleeper"))
	env.enterAt(t, "sleeper", now.Add(-2*time.Hour))

	// 서로 매칭 가능한 신규 대기자 둘
	env.dir.Put(openProfile("carol"))
	env.dir.Put(openProfile("dave"))
	env.enterAt(t, "carol", now)
	env.enterAt(t, "dave", now)

	// alice 프로필도 필요 - 재입장 후 스윕 대상이 된다
	env.dir.Put(openProfile("alice"))
	env.dir.Put(openProfile("bob"))

	rec := newTestReconciler(env)
	rec.RunOnce(ctx)

	// 만료 세션은 yes_idle로 판정되고 alice는 재입장
	sess, _ := env.store.GetSession(ctx, expiredID)
	if sess.Status != models.SessionStatusResolved {
		t.Errorf("expired session status = %s, want resolved", sess.Status)
	}
	if sess.Outcome == nil || *sess.Outcome != models.OutcomeYesIdle {
		t.Errorf("expired session outcome = %v, want yes_idle", sess.Outcome)
	}

	// stale 대기자는 제거됐다
	if entry, _ := env.store.GetPoolEntry(ctx, "sleeper"); entry != nil {
		t.Error("stale participant survived the sweep")
	}

	// 재입장한 alice와 carol/dave 중 둘이 같은 패스에서 매칭됐다
	matched := 0
	for _, id := range []string{"alice", "carol", "dave"} {
		p, _ := env.store.GetParticipant(ctx, id)
		if p.LifecycleState == models.LifecycleMatched {
			matched++
		}
	}
	if matched != 2 {
		t.Errorf("matched after pass = %d, want 2", matched)
	}
	stats, _ := env.store.PoolStats(ctx)
	if stats.ActiveSessions != 1 {
		t.Errorf("active sessions = %d, want 1", stats.ActiveSessions)
	}
	if stats.Waiting != 1 {
		t.Errorf("waiting = %d, want 1", stats.Waiting)
	}
}

func TestReconciler_StartStop(t *testing.T) {
	env := newTestEnv(testConfig())
	rec := NewReconciler(env.pairing, env.outcomes, env.liveness, 10*time.Millisecond, zap.NewNop())

	rec.Start()
	// 중복 시작은 무시된다
	rec.Start()

	time.Sleep(30 * time.Millisecond)
	rec.Stop()

	// 중복 정지도 안전하다
	rec.Stop()
}
