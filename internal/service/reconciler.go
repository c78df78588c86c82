package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reconciler 주기적 백그라운드 정리 루프.
// 한 틱마다 만료 세션 판정, 이탈자 처리, 오래된 대기자 제거,
// 완화 단계 전진, 기회적 페어링 스윕을 순서대로 실행한다.
type Reconciler struct {
	pairing  *PairingService
	outcomes *OutcomeService
	liveness *LivenessService
	interval time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewReconciler(
	pairing *PairingService,
	outcomes *OutcomeService,
	liveness *LivenessService,
	interval time.Duration,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		pairing:  pairing,
		outcomes: outcomes,
		liveness: liveness,
		interval: interval,
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start 루프 시작 (이미 실행 중이면 무시)
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		r.logger.Warn("Reconciler already running")
		return
	}
	r.running = true

	r.wg.Add(1)
	go r.loop()

	r.logger.Info("Reconciler started", zap.Duration("interval", r.interval))
}

// Stop 루프 중지 및 종료 대기
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false

	close(r.stopChan)
	r.wg.Wait()

	r.logger.Info("Reconciler stopped")
}

func (r *Reconciler) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(context.Background())
		case <-r.stopChan:
			return
		}
	}
}

// RunOnce 정리 1회 실행. 순서가 중요하다: 만료 판정과 이탈 처리로
// 대기열을 최신 상태로 만든 뒤에 페어링을 시도해야 방금 풀려난
// 참가자가 같은 틱에서 다시 매칭될 수 있다.
func (r *Reconciler) RunOnce(ctx context.Context) {
	resolved := r.outcomes.ResolveExpired(ctx)
	cancelled := r.liveness.SweepDisconnected(ctx)
	evicted := r.liveness.SweepStalePool(ctx)
	advanced := r.pairing.AdvanceStages(ctx)
	paired := r.pairing.SweepOnce(ctx)

	if resolved+cancelled+evicted+advanced+paired > 0 {
		r.logger.Info("Reconcile pass complete",
			zap.Int("resolvedSessions", resolved),
			zap.Int("cancelledSessions", cancelled),
			zap.Int("evictedParticipants", evicted),
			zap.Int("advancedStages", advanced),
			zap.Int("pairedSessions", paired))
	}
}
