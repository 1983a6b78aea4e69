package domain

import "time"

// Project status lifecycle values.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Project is the primary unit of tracking, owned by a single user and optionally
// shared with others through Membership grants.
type Project struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Status      string
	Progress    int
	Investment  float64
	Revenue     float64
	TeamSize    int
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profit is derived from revenue and investment, never stored.
func (p Project) Profit() float64 {
	return p.Revenue - p.Investment
}

// ValidStatus reports whether s is one of the lifecycle values.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
