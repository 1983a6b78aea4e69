package domain

import "time"

// Connection edge types.
const (
	ConnectionDependency   = "dependency"
	ConnectionIntegration  = "integration"
	ConnectionPrerequisite = "prerequisite"
	ConnectionRelated      = "related"
)

// Connection is a directed relationship edge between two projects.
// Self-loops are invalid; edges are unique per (source, target, type).
type Connection struct {
	ID              string
	SourceProjectID string
	TargetProjectID string
	Type            string
	Description     string
	CreatedAt       time.Time
}

// ValidConnectionType reports whether t is a known edge type.
func ValidConnectionType(t string) bool {
	switch t {
	case ConnectionDependency, ConnectionIntegration, ConnectionPrerequisite, ConnectionRelated:
		return true
	}
	return false
}
