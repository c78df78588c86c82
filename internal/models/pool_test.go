package models

import (
	"testing"
	"time"
)

func TestStageFor(t *testing.T) {
	entered := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stage1After := 30 * time.Second
	stage2After := 90 * time.Second

	tests := []struct {
		name     string
		waited   time.Duration
		expected RelaxationStage
	}{
		{"just entered", 0, StageExact},
		{"below first threshold", 29 * time.Second, StageExact},
		{"at first threshold", 30 * time.Second, StageWidened},
		{"between thresholds", 60 * time.Second, StageWidened},
		{"at second threshold", 90 * time.Second, StageAny},
		{"long past second threshold", time.Hour, StageAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StageFor(entered, entered.Add(tt.waited), stage1After, stage2After)
			if got != tt.expected {
				t.Errorf("StageFor(+%v) = %d, want %d", tt.waited, got, tt.expected)
			}
		})
	}
}

func TestStageFor_NeverRegresses(t *testing.T) {
	entered := time.Now()
	prev := StageExact
	for i := 0; i <= 120; i += 5 {
		got := StageFor(entered, entered.Add(time.Duration(i)*time.Second), 30*time.Second, 90*time.Second)
		if got < prev {
			t.Fatalf("stage regressed from %d to %d at %ds", prev, got, i)
		}
		prev = got
	}
}
