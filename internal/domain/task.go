package domain

import "time"

// Task priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task belongs to exactly one project.
type Task struct {
	ID          string
	ProjectID   string
	Description string
	Completed   bool
	Priority    string
	Assignee    string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
