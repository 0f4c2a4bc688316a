package domain

import "testing"

func TestSessionStateTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		apply      func(*SessionState)
		wantStatus Status
		wantError  string
	}{
		{"complete", func(s *SessionState) { s.Complete() }, StatusCompleted, ""},
		{"fail", func(s *SessionState) { s.Fail("boom") }, StatusError, "boom"},
		{"complete after fail", func(s *SessionState) { s.Fail("boom"); s.Complete() }, StatusError, "boom"},
		{"fail after complete", func(s *SessionState) { s.Complete(); s.Fail("late") }, StatusCompleted, ""},
		{"second fail keeps first message", func(s *SessionState) { s.Fail("first"); s.Fail("second") }, StatusError, "first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewSessionState()
			s.Start()
			s.Append(GeneratedExample{ID: "a"})
			tt.apply(s)

			if s.Status != tt.wantStatus || s.Error != tt.wantError {
				t.Fatalf("got %s %q, want %s %q", s.Status, s.Error, tt.wantStatus, tt.wantError)
			}
			if s.Progress != len(s.Examples) {
				t.Fatalf("progress %d does not match %d examples", s.Progress, len(s.Examples))
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	for status, want := range map[Status]bool{
		StatusIdle:       false,
		StatusGenerating: false,
		StatusCompleted:  true,
		StatusError:      true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
