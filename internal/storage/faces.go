package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/models"
)

const faceColumns = `face_id, group_id, image_ref, display_name, collection_id, created_at`

func scanFace(row pgx.Row) (models.FaceRecord, error) {
	var r models.FaceRecord
	err := row.Scan(&r.FaceID, &r.GroupID, &r.ImageRef, &r.DisplayName, &r.CollectionID, &r.CreatedAt)
	return r, err
}

// Get returns the face record or (nil, nil) if it does not exist.
func (s *PostgresStore) Get(ctx context.Context, faceID string) (*models.FaceRecord, error) {
	r, err := scanFace(s.pool.QueryRow(ctx,
		`SELECT `+faceColumns+` FROM face_records WHERE face_id = $1`, faceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get face: %w", err)
	}
	return &r, nil
}

// Put inserts rec unless a record for the same image (or face) exists, in
// which case it returns facegroup.ErrDuplicateImage. The unique index on
// image_ref makes this the conditional write that settles concurrent
// deliveries of the same upload.
func (s *PostgresStore) Put(ctx context.Context, rec models.FaceRecord) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO face_records (`+faceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING`,
		rec.FaceID, rec.GroupID, rec.ImageRef, rec.DisplayName, rec.CollectionID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("put face: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return facegroup.ErrDuplicateImage
	}
	return nil
}

// Scan returns all records matching filter, oldest first.
func (s *PostgresStore) Scan(ctx context.Context, filter facegroup.Filter) ([]models.FaceRecord, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argIdx := 1

	if filter.CollectionID != "" {
		where += fmt.Sprintf(" AND collection_id = $%d", argIdx)
		args = append(args, filter.CollectionID)
		argIdx++
	}
	if filter.GroupID != "" {
		where += fmt.Sprintf(" AND group_id = $%d", argIdx)
		args = append(args, filter.GroupID)
		argIdx++
	}
	if filter.ImageRef != "" {
		where += fmt.Sprintf(" AND image_ref = $%d", argIdx)
		args = append(args, filter.ImageRef)
		argIdx++
	}
	if filter.NameContains != "" {
		where += fmt.Sprintf(" AND position(lower($%d) in lower(coalesce(display_name, ''))) > 0", argIdx)
		args = append(args, filter.NameContains)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+faceColumns+` FROM face_records `+where+` ORDER BY created_at, face_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("scan faces: %w", err)
	}
	defer rows.Close()

	faces := []models.FaceRecord{}
	for rows.Next() {
		r, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face row: %w", err)
		}
		faces = append(faces, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// Update applies changes to a single record.
func (s *PostgresStore) Update(ctx context.Context, faceID string, changes facegroup.Changes) error {
	if changes.DisplayName == nil {
		return nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE face_records SET display_name = $1 WHERE face_id = $2`,
		*changes.DisplayName, faceID)
	if err != nil {
		return fmt.Errorf("update face %s: %w", faceID, err)
	}
	if tag.RowsAffected() == 0 {
		return facegroup.ErrNotFound
	}
	return nil
}

// RenameGroup sets the display name of every face in the group in one
// statement, so the whole group changes atomically.
func (s *PostgresStore) RenameGroup(ctx context.Context, groupID, name string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE face_records SET display_name = $1 WHERE group_id = $2`, name, groupID)
	if err != nil {
		return 0, fmt.Errorf("rename group %s: %w", groupID, err)
	}
	return int(tag.RowsAffected()), nil
}
