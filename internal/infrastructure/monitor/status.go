package monitor

import "time"

// Status is the last observed state of every dependency. Disabled
// dependencies are reported as false.
type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Control    bool      `json:"control"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}
