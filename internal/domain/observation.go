package domain

import "time"

// Observation is a free-text note attached to a project. AuthorName is a display
// snapshot taken at creation; AuthorID is authoritative for delete authorization.
type Observation struct {
	ID         string
	ProjectID  string
	AuthorID   string
	AuthorName string
	Text       string
	CreatedAt  time.Time
}
