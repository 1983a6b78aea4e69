package domain

import (
	"encoding/json"
	"time"
)

// Change feed operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Tables surfaced on the change feed.
const (
	TableProjects     = "projects"
	TableTasks        = "tasks"
	TableObservations = "observations"
)

// ChangeEvent describes a row-level mutation pushed to feed subscribers.
// Before/After carry row snapshots as a convenience; consumers are expected to
// refetch the affected collection rather than patch locally.
type ChangeEvent struct {
	Table     string          `json:"table"`
	Op        string          `json:"operation"`
	ProjectID string          `json:"project_id"`
	Before    json.RawMessage `json:"row_before,omitempty"`
	After     json.RawMessage `json:"row_after,omitempty"`
	At        time.Time       `json:"at"`

	// Audience pins delivery to an explicit set of user ids. It is required
	// for delete events: the backing row is gone by publish time, so a live
	// visibility lookup would deny everyone. Never serialized.
	Audience []string `json:"-"`
}
