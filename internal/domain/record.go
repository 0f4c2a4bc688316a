package domain

import "time"

// Session is the persisted summary of one server-side generation run.
type Session struct {
	ID         string           `json:"id"`
	ClientID   string           `json:"clientId"`
	Config     GenerationConfig `json:"config"`
	Status     Status           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Generated  int              `json:"generated"`
	Skipped    int              `json:"skipped"`
	Provider   string           `json:"provider"`
	Model      string           `json:"model"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// Client is an anonymous browser or CLI identity that owns sessions.
type Client struct {
	ID         string    `json:"id"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	CreatedAt  time.Time `json:"createdAt"`
}
