package domain

// Status is the lifecycle state of a generation session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// SessionState is the consumer-side view of one generation session.
// It is owned by exactly one session and replaced wholesale when a new
// session starts or the state is cleared.
type SessionState struct {
	Status   Status             `json:"status"`
	Examples []GeneratedExample `json:"examples"`
	Progress int                `json:"progress"`
	Error    string             `json:"error,omitempty"`
}

// NewSessionState returns the idle state every consumer starts in.
func NewSessionState() *SessionState {
	return &SessionState{Status: StatusIdle, Examples: []GeneratedExample{}}
}

// Start resets the state for a fresh session.
func (s *SessionState) Start() {
	s.Status = StatusGenerating
	s.Examples = []GeneratedExample{}
	s.Progress = 0
	s.Error = ""
}

// Append records one successfully decoded example.
func (s *SessionState) Append(ex GeneratedExample) {
	s.Examples = append(s.Examples, ex)
	s.Progress++
}

// Fail moves the session to the error state with msg. A finished session
// keeps its outcome.
func (s *SessionState) Fail(msg string) {
	if s.Status.Terminal() {
		return
	}
	s.Status = StatusError
	s.Error = msg
}

// Complete moves the session to completed unless it already finished.
func (s *SessionState) Complete() {
	if s.Status.Terminal() {
		return
	}
	s.Status = StatusCompleted
}

// Snapshot returns a copy that does not share the examples slice.
func (s *SessionState) Snapshot() SessionState {
	out := *s
	out.Examples = append([]GeneratedExample(nil), s.Examples...)
	if out.Examples == nil {
		out.Examples = []GeneratedExample{}
	}
	return out
}
