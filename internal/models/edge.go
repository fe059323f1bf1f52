package models

import (
	"time"

	"github.com/google/uuid"
)

// EdgeKind tags a directed relation between a subject and an object.
type EdgeKind string

const (
	EdgeLike   EdgeKind = "like"   // user -> post
	EdgeFollow EdgeKind = "follow" // user -> user
)

// Valid reports whether k is a known edge kind.
func (k EdgeKind) Valid() bool {
	return k == EdgeLike || k == EdgeFollow
}

// Edge is a deduplicated (subject, object, kind) relation.
type Edge struct {
	SubjectID uuid.UUID `json:"subjectId" db:"subject_id"`
	ObjectID  uuid.UUID `json:"objectId" db:"object_id"`
	Kind      EdgeKind  `json:"kind" db:"kind"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ToggleState is the outcome of flipping an edge.
type ToggleState string

const (
	EdgeAdded   ToggleState = "added"
	EdgeRemoved ToggleState = "removed"
)
