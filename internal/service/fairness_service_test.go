package service

import (
	"testing"
	"time"
)

func TestFairnessService_AccruedScore(t *testing.T) {
	svc := NewFairnessService(10*time.Second, 10)
	entered := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		carried  int
		waited   time.Duration
		expected int
	}{
		{"just entered", 0, 0, 0},
		{"below one interval", 0, 9 * time.Second, 0},
		{"exactly one interval", 0, 10 * time.Second, 1},
		{"several intervals", 0, 65 * time.Second, 6},
		{"carried score preserved", 20, 25 * time.Second, 22},
		{"clock skew before entry", 5, -time.Second, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.AccruedScore(tt.carried, entered, entered.Add(tt.waited))
			if got != tt.expected {
				t.Errorf("AccruedScore(%d, +%v) = %d, want %d",
					tt.carried, tt.waited, got, tt.expected)
			}
		})
	}
}

func TestFairnessService_Monotonicity(t *testing.T) {
	svc := NewFairnessService(10*time.Second, 10)
	entered := time.Now()

	// 대기 시간이 늘어나는 동안 점수는 절대 감소하지 않는다
	prev := svc.AccruedScore(0, entered, entered)
	for i := 1; i <= 30; i++ {
		now := entered.Add(time.Duration(i) * 7 * time.Second)
		score := svc.AccruedScore(0, entered, now)
		if score < prev {
			t.Fatalf("score decreased from %d to %d at step %d", prev, score, i)
		}
		prev = score
	}
}

func TestFairnessService_VoteBoostIncreasesCarried(t *testing.T) {
	svc := NewFairnessService(10*time.Second, 10)

	if svc.VoteBoost() <= 0 {
		t.Errorf("VoteBoost = %d, want > 0", svc.VoteBoost())
	}

	now := time.Now()
	base := svc.AccruedScore(0, now, now)
	boosted := svc.AccruedScore(svc.VoteBoost(), now, now)
	if boosted <= base {
		t.Errorf("boosted score %d not greater than base %d", boosted, base)
	}
}

func TestFairnessService_DefaultInterval(t *testing.T) {
	// 0 이하 간격은 기본값으로 대체되어 0으로 나누기가 없어야 한다
	svc := NewFairnessService(0, 10)
	entered := time.Now()
	if got := svc.AccruedScore(0, entered, entered.Add(10*time.Second)); got != 1 {
		t.Errorf("AccruedScore with default interval = %d, want 1", got)
	}
}
