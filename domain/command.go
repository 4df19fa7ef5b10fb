package domain

import "time"

// Privileged dashboard actions.
const (
	ActionRetry       = "computers.retry"
	ActionShutdown    = "computers.shutdown"
	ActionShutdownAll = "computers.shutdown_all"
	ActionRemove      = "computers.remove"
)

// Command outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
	OutcomeDenied = "denied"
)

// CommandRecord is an audit entry for one privileged action attempt.
type CommandRecord struct {
	ID        string    `json:"id"`
	TabID     string    `json:"tab_id"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *CommandRecord) Succeeded() bool {
	return c != nil && c.Outcome == OutcomeSent
}
