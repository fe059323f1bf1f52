package database

import (
	"context"

	"gator-social/internal/models"

	"github.com/google/uuid"
)

// EdgeExists reports whether subjectID holds a kind edge to objectID.
func (s *SQLStore) EdgeExists(ctx context.Context, subjectID, objectID uuid.UUID, kind models.EdgeKind) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM edges WHERE subject_id = ? AND object_id = ? AND kind = ?`
	if err := s.DB.GetContext(ctx, &n, s.q(query), subjectID, objectID, kind); err != nil {
		return false, wrapError(err, "failed to check edge")
	}
	return n > 0, nil
}

// CreateEdge inserts an edge. An edge already present is reported as ErrDuplicate,
// which is how concurrent creators of the same edge tell each other apart.
func (s *SQLStore) CreateEdge(ctx context.Context, edge *models.Edge) error {
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = now()
	}

	query := `
		INSERT INTO edges (subject_id, object_id, kind, created_at)
		VALUES (:subject_id, :object_id, :kind, :created_at)
	`
	if _, err := s.DB.NamedExecContext(ctx, query, edge); err != nil {
		return wrapError(err, "failed to create edge")
	}
	return nil
}

// DeleteEdge removes an edge and reports whether it was present.
func (s *SQLStore) DeleteEdge(ctx context.Context, subjectID, objectID uuid.UUID, kind models.EdgeKind) (bool, error) {
	query := `DELETE FROM edges WHERE subject_id = ? AND object_id = ? AND kind = ?`
	result, err := s.DB.ExecContext(ctx, s.q(query), subjectID, objectID, kind)
	if err != nil {
		return false, wrapError(err, "failed to delete edge")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, wrapError(err, "failed to get rows affected after delete")
	}
	return rowsAffected > 0, nil
}
