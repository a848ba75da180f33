package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/storage"
	"github.com/your-org/facegroup/internal/vision"
)

type fakeImages map[string][]byte

func (f fakeImages) GetObject(ctx context.Context, key string) ([]byte, error) {
	data, ok := f[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

type fakeExtractor struct {
	faces map[string]vision.Face
}

func (f *fakeExtractor) Extract(data []byte) (vision.Face, bool, error) {
	face, ok := f.faces[string(data)]
	return face, ok, nil
}

type indexed struct {
	collectionID string
	imageRef     string
	quality      float32
}

type fakeIndex struct {
	added    map[string]indexed
	deleted  []string
	results  []storage.VectorMatch
	minSim   float64
	limit    int
	addError error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{added: make(map[string]indexed)}
}

func (f *fakeIndex) AddFaceVector(ctx context.Context, faceID, collectionID, imageRef string, embedding []float32, quality float32) error {
	if f.addError != nil {
		return f.addError
	}
	f.added[faceID] = indexed{collectionID: collectionID, imageRef: imageRef, quality: quality}
	return nil
}

func (f *fakeIndex) DeleteFaceVector(ctx context.Context, faceID string) error {
	f.deleted = append(f.deleted, faceID)
	return nil
}

func (f *fakeIndex) SearchSimilarFaces(ctx context.Context, faceID string, minSimilarity float64, limit int) ([]storage.VectorMatch, error) {
	f.minSim = minSimilarity
	f.limit = limit
	return f.results, nil
}

func newTestMatcher(idx *fakeIndex) *VectorMatcher {
	images := fakeImages{"face/bob.jpg": []byte("bob"), "face/empty.jpg": []byte("empty")}
	extractor := &fakeExtractor{faces: map[string]vision.Face{
		"bob": {Embedding: []float32{1, 0}, Confidence: 0.97},
	}}
	m := NewVectorMatcher(images, extractor, idx, "family", 10)
	m.newID = func() string { return "F1" }
	return m
}

func TestDetect_IndexesPrimaryFace(t *testing.T) {
	idx := newFakeIndex()
	m := newTestMatcher(idx)

	id, found, err := m.Detect(context.Background(), "face/bob.jpg")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "F1", id)
	assert.Equal(t, indexed{collectionID: "family", imageRef: "face/bob.jpg", quality: 0.97}, idx.added["F1"])
}

func TestDetect_NoFace(t *testing.T) {
	idx := newFakeIndex()

	id, found, err := newTestMatcher(idx).Detect(context.Background(), "face/empty.jpg")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, id)
	assert.Empty(t, idx.added)
}

func TestDetect_Errors(t *testing.T) {
	idx := newFakeIndex()
	_, _, err := newTestMatcher(idx).Detect(context.Background(), "face/missing.jpg")
	assert.ErrorContains(t, err, "load image")

	idx.addError = errors.New("db down")
	_, _, err = newTestMatcher(idx).Detect(context.Background(), "face/bob.jpg")
	assert.ErrorContains(t, err, "db down")
}

func TestFindSimilar_ConvertsToPercent(t *testing.T) {
	idx := newFakeIndex()
	idx.results = []storage.VectorMatch{{FaceID: "A", Similarity: 0.92}, {FaceID: "B", Similarity: 0.86}}

	matches, err := newTestMatcher(idx).FindSimilar(context.Background(), "F2", 85)
	require.NoError(t, err)

	assert.InDelta(t, 0.85, idx.minSim, 1e-9)
	assert.Equal(t, 10, idx.limit)
	require.Len(t, matches, 2)
	assert.Equal(t, "A", matches[0].FaceID)
	assert.InDelta(t, 92, matches[0].Similarity, 1e-9)
	assert.Equal(t, "B", matches[1].FaceID)
}

func TestForget(t *testing.T) {
	idx := newFakeIndex()
	m := newTestMatcher(idx)
	var _ facegroup.Forgetter = m

	require.NoError(t, m.Forget(context.Background(), "F9"))
	assert.Equal(t, []string{"F9"}, idx.deleted)
}
