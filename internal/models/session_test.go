package models

import "testing"

func TestCanonicalPair(t *testing.T) {
	tests := []struct {
		x, y, wantA, wantB string
	}{
		{"alice", "bob", "alice", "bob"},
		{"bob", "alice", "alice", "bob"},
		{"a", "a", "a", "a"},
	}

	for _, tt := range tests {
		a, b := CanonicalPair(tt.x, tt.y)
		if a != tt.wantA || b != tt.wantB {
			t.Errorf("CanonicalPair(%s, %s) = (%s, %s), want (%s, %s)",
				tt.x, tt.y, a, b, tt.wantA, tt.wantB)
		}
	}
}

func TestSession_PartnerOf(t *testing.T) {
	s := &Session{ParticipantAID: "alice", ParticipantBID: "bob"}

	if got := s.PartnerOf("alice"); got != "bob" {
		t.Errorf("PartnerOf(alice) = %s, want bob", got)
	}
	if got := s.PartnerOf("bob"); got != "alice" {
		t.Errorf("PartnerOf(bob) = %s, want alice", got)
	}
	if got := s.PartnerOf("mallory"); got != "" {
		t.Errorf("PartnerOf(outsider) = %s, want empty", got)
	}
}

func TestSession_Active(t *testing.T) {
	for _, status := range []SessionStatus{SessionStatusPaired, SessionStatusVoting} {
		s := &Session{Status: status}
		if !s.Active() {
			t.Errorf("Active() for %s = false, want true", status)
		}
	}
	for _, status := range []SessionStatus{SessionStatusResolved, SessionStatusCancelled} {
		s := &Session{Status: status}
		if s.Active() {
			t.Errorf("Active() for %s = true, want false", status)
		}
	}
}
