package domain

import "time"

const (
	ComputerOnline  = "online"
	ComputerOffline = "offline"
)

// Computer is a machine as reported by the control backend.
type Computer struct {
	Name          string `json:"computer_name"`
	IP            string `json:"ip"`
	StartTime     string `json:"start_time,omitempty"`
	LastSeen      string `json:"lastSeen,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Status        string `json:"status"`
}

func (c *Computer) IsOnline() bool {
	return c != nil && c.Status == ComputerOnline
}

// Snapshot is the latest result of polling the control backend.
type Snapshot struct {
	Computers   []Computer `json:"computers"`
	BackendDown bool       `json:"backend_down"`
	Error       string     `json:"error,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
}
