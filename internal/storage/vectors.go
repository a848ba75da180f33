package storage

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// VectorMatch is a stored face close to a query face. Similarity is cosine
// similarity in [-1, 1].
type VectorMatch struct {
	FaceID     string
	Similarity float64
}

// AddFaceVector indexes a face embedding under faceID.
func (s *PostgresStore) AddFaceVector(ctx context.Context, faceID, collectionID, imageRef string, embedding []float32, quality float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO face_vectors (face_id, collection_id, image_ref, embedding, quality)
		 VALUES ($1, $2, $3, $4, $5)`,
		faceID, collectionID, imageRef, pgvector.NewVector(embedding), quality)
	if err != nil {
		return fmt.Errorf("add face vector: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteFaceVector(ctx context.Context, faceID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM face_vectors WHERE face_id = $1`, faceID)
	if err != nil {
		return fmt.Errorf("delete face vector: %w", err)
	}
	return nil
}

// SearchSimilarFaces returns faces in the same collection as faceID whose
// cosine similarity is at least minSimilarity, closest first. faceID itself
// is excluded. Equal distances are ordered by face ID so results are stable.
//
// Only vectors backed by a face_records row are candidates. A vector is left
// without one when a face is dropped and the delete fails, or when the
// process dies between indexing and storing the record; such orphans would
// otherwise outrank real matches and push every later photo of that person
// into a fresh group.
func (s *PostgresStore) SearchSimilarFaces(ctx context.Context, faceID string, minSimilarity float64, limit int) ([]VectorMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
		SELECT v.face_id, 1 - (v.embedding <=> q.embedding) AS similarity
		FROM face_vectors v
		JOIN face_vectors q ON q.face_id = $1
		JOIN face_records r ON r.face_id = v.face_id
		WHERE v.collection_id = q.collection_id
		  AND v.face_id <> q.face_id
		  AND 1 - (v.embedding <=> q.embedding) >= $2
		ORDER BY v.embedding <=> q.embedding, v.face_id
		LIMIT $3`,
		faceID, minSimilarity, limit)
	if err != nil {
		return nil, fmt.Errorf("search similar faces: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.FaceID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan similar face: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
