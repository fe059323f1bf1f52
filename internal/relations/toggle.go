// Package relations flips directed edges (likes, follows) between users and their objects.
package relations

import (
	"context"
	"fmt"

	"gator-social/internal/models"
	"gator-social/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxToggleAttempts bounds how often a toggle re-runs after losing a create race.
const MaxToggleAttempts = 5

// Store is the slice of the persistence gateway a Toggler needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	EdgeExists(ctx context.Context, subjectID, objectID uuid.UUID, kind models.EdgeKind) (bool, error)
	CreateEdge(ctx context.Context, edge *models.Edge) error
	DeleteEdge(ctx context.Context, subjectID, objectID uuid.UUID, kind models.EdgeKind) (bool, error)
}

// Toggler flips the existence of (subject, object, kind) edges.
//
// Each branch is one atomic storage statement: a conditional delete that reports
// whether it removed a row, or an insert that fails with ErrDuplicate when the
// edge is already there. A toggle whose insert loses a race to a concurrent
// toggle starts over, so the edge ends up present at most once.
type Toggler struct {
	store  Store
	logger zerolog.Logger
}

func NewToggler(store Store, logger zerolog.Logger) *Toggler {
	return &Toggler{
		store:  store,
		logger: logger.With().Str("component", "relations").Logger(),
	}
}

// Toggle removes the edge if it exists and creates it otherwise.
// Creating requires the object to exist: a post for likes, a user for follows.
func (t *Toggler) Toggle(ctx context.Context, subjectID, objectID uuid.UUID, kind models.EdgeKind) (models.ToggleState, error) {
	if !kind.Valid() {
		return "", utils.NewValidationError("unknown edge kind %q", kind)
	}
	if kind == models.EdgeFollow && subjectID == objectID {
		return "", utils.NewValidationError("users cannot follow themselves")
	}

	resolved := false
	for attempt := 1; attempt <= MaxToggleAttempts; attempt++ {
		removed, err := t.store.DeleteEdge(ctx, subjectID, objectID, kind)
		if err != nil {
			return "", err
		}
		if removed {
			return models.EdgeRemoved, nil
		}

		if !resolved {
			if err := t.resolveObject(ctx, objectID, kind); err != nil {
				return "", err
			}
			resolved = true
		}

		err = t.store.CreateEdge(ctx, &models.Edge{SubjectID: subjectID, ObjectID: objectID, Kind: kind})
		if err == nil {
			return models.EdgeAdded, nil
		}
		if !utils.IsErrorCode(err, utils.ErrDuplicate) {
			return "", err
		}

		t.logger.Debug().
			Str("subject_id", subjectID.String()).
			Str("object_id", objectID.String()).
			Str("kind", string(kind)).
			Int("attempt", attempt).
			Msg("edge created concurrently, retrying toggle")
	}

	return "", utils.NewConflictError(fmt.Sprintf("%s edge kept changing concurrently", kind))
}

// Exists reports whether the edge is currently present.
func (t *Toggler) Exists(ctx context.Context, subjectID, objectID uuid.UUID, kind models.EdgeKind) (bool, error) {
	return t.store.EdgeExists(ctx, subjectID, objectID, kind)
}

func (t *Toggler) resolveObject(ctx context.Context, objectID uuid.UUID, kind models.EdgeKind) error {
	var err error
	switch kind {
	case models.EdgeLike:
		_, err = t.store.GetPost(ctx, objectID)
	case models.EdgeFollow:
		_, err = t.store.GetUser(ctx, objectID)
	}
	return err
}
