// Package matching implements the face matching gateway on top of the
// local ONNX models and a pgvector index.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/observability"
	"github.com/your-org/facegroup/internal/storage"
	"github.com/your-org/facegroup/internal/vision"
)

// ImageSource loads an uploaded image by object key.
type ImageSource interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// FaceExtractor computes the signature of the primary face in an image.
type FaceExtractor interface {
	Extract(imageData []byte) (vision.Face, bool, error)
}

// VectorIndex stores face signatures and answers similarity queries.
type VectorIndex interface {
	AddFaceVector(ctx context.Context, faceID, collectionID, imageRef string, embedding []float32, quality float32) error
	DeleteFaceVector(ctx context.Context, faceID string) error
	SearchSimilarFaces(ctx context.Context, faceID string, minSimilarity float64, limit int) ([]storage.VectorMatch, error)
}

// VectorMatcher indexes one face per image into a collection and searches it
// by cosine similarity. Similarities are reported as percentages.
type VectorMatcher struct {
	images       ImageSource
	extractor    FaceExtractor
	index        VectorIndex
	collectionID string
	maxMatches   int
	newID        func() string
}

func NewVectorMatcher(images ImageSource, extractor FaceExtractor, index VectorIndex, collectionID string, maxMatches int) *VectorMatcher {
	return &VectorMatcher{
		images:       images,
		extractor:    extractor,
		index:        index,
		collectionID: collectionID,
		maxMatches:   maxMatches,
		newID:        uuid.NewString,
	}
}

// Detect indexes the primary face of the image and returns its new ID.
func (m *VectorMatcher) Detect(ctx context.Context, imageRef string) (string, bool, error) {
	data, err := m.images.GetObject(ctx, imageRef)
	if err != nil {
		return "", false, fmt.Errorf("load image: %w", err)
	}

	face, found, err := m.extractor.Extract(data)
	if err != nil {
		return "", false, fmt.Errorf("extract face: %w", err)
	}
	if !found {
		return "", false, nil
	}

	faceID := m.newID()
	if err := m.index.AddFaceVector(ctx, faceID, m.collectionID, imageRef, face.Embedding, face.Confidence); err != nil {
		return "", false, err
	}
	return faceID, true, nil
}

// FindSimilar returns indexed faces at or above threshold percent, best
// first, capped at the configured match count.
func (m *VectorMatcher) FindSimilar(ctx context.Context, faceID string, threshold float64) ([]facegroup.Match, error) {
	start := time.Now()
	found, err := m.index.SearchSimilarFaces(ctx, faceID, threshold/100, m.maxMatches)
	if err != nil {
		return nil, err
	}
	observability.StageDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())

	matches := make([]facegroup.Match, 0, len(found))
	for _, f := range found {
		matches = append(matches, facegroup.Match{FaceID: f.FaceID, Similarity: f.Similarity * 100})
	}
	return matches, nil
}

// Forget removes a face from the index.
func (m *VectorMatcher) Forget(ctx context.Context, faceID string) error {
	return m.index.DeleteFaceVector(ctx, faceID)
}
