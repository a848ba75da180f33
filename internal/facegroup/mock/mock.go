// Package mock provides in-memory implementations of the facegroup
// gateways for tests.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/models"
)

// MockStore is an in-memory facegroup.Store.
type MockStore struct {
	mu      sync.RWMutex
	records map[string]models.FaceRecord

	// UniqueImages makes Put behave as a conditional write on ImageRef.
	UniqueImages bool

	// Error injection
	GetError    error
	PutError    error
	ScanError   error
	UpdateError map[string]error

	PutCalls    int
	UpdateCalls []string
}

func NewMockStore() *MockStore {
	return &MockStore{
		records:     make(map[string]models.FaceRecord),
		UpdateError: make(map[string]error),
	}
}

// AddRecord stores rec directly, bypassing Put.
func (m *MockStore) AddRecord(rec models.FaceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.FaceID] = rec
}

// Len returns the number of stored records.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MockStore) Get(ctx context.Context, faceID string) (*models.FaceRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[faceID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MockStore) Put(ctx context.Context, rec models.FaceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.PutError != nil {
		return m.PutError
	}
	if m.UniqueImages {
		for _, r := range m.records {
			if r.ImageRef == rec.ImageRef {
				return facegroup.ErrDuplicateImage
			}
		}
	}
	m.records[rec.FaceID] = rec
	return nil
}

// Scan returns matching records ordered by creation time, then face ID.
func (m *MockStore) Scan(ctx context.Context, filter facegroup.Filter) ([]models.FaceRecord, error) {
	if m.ScanError != nil {
		return nil, m.ScanError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.FaceRecord
	for _, r := range m.records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].FaceID < out[j].FaceID
	})
	return out, nil
}

func (m *MockStore) Update(ctx context.Context, faceID string, changes facegroup.Changes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, faceID)
	if err := m.UpdateError[faceID]; err != nil {
		return err
	}
	rec, ok := m.records[faceID]
	if !ok {
		return facegroup.ErrNotFound
	}
	if changes.DisplayName != nil {
		name := *changes.DisplayName
		rec.DisplayName = &name
	}
	m.records[faceID] = rec
	return nil
}

// MockAtomicStore adds facegroup.GroupRenamer to MockStore.
type MockAtomicStore struct {
	*MockStore
	RenameGroupCalls int
	RenameGroupError error
}

func NewMockAtomicStore() *MockAtomicStore {
	return &MockAtomicStore{MockStore: NewMockStore()}
}

func (m *MockAtomicStore) RenameGroup(ctx context.Context, groupID, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RenameGroupCalls++
	if m.RenameGroupError != nil {
		return 0, m.RenameGroupError
	}
	n := 0
	for id, r := range m.records {
		if r.GroupID == groupID {
			v := name
			r.DisplayName = &v
			m.records[id] = r
			n++
		}
	}
	return n, nil
}

// MockMatcher is a scripted facegroup.Matcher. Faces maps an image reference
// to the face ID Detect returns; images not in Faces have no face.
type MockMatcher struct {
	mu sync.Mutex

	Faces   map[string]string
	Similar map[string][]facegroup.Match

	DetectError  error
	SimilarError error

	DetectCalls  []string
	SimilarCalls []string
	Thresholds   []float64
	Forgotten    []string
}

func NewMockMatcher() *MockMatcher {
	return &MockMatcher{
		Faces:   make(map[string]string),
		Similar: make(map[string][]facegroup.Match),
	}
}

func (m *MockMatcher) Detect(ctx context.Context, imageRef string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DetectCalls = append(m.DetectCalls, imageRef)
	if m.DetectError != nil {
		return "", false, m.DetectError
	}
	id, ok := m.Faces[imageRef]
	return id, ok, nil
}

// FindSimilar returns the scripted matches at or above threshold, in
// scripted order.
func (m *MockMatcher) FindSimilar(ctx context.Context, faceID string, threshold float64) ([]facegroup.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SimilarCalls = append(m.SimilarCalls, faceID)
	m.Thresholds = append(m.Thresholds, threshold)
	if m.SimilarError != nil {
		return nil, m.SimilarError
	}
	var out []facegroup.Match
	for _, match := range m.Similar[faceID] {
		if match.Similarity >= threshold {
			out = append(out, match)
		}
	}
	return out, nil
}

func (m *MockMatcher) Forget(ctx context.Context, faceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Forgotten = append(m.Forgotten, faceID)
	return nil
}

// MockNotifier records published events.
type MockNotifier struct {
	mu     sync.Mutex
	Events []models.FaceEvent
	Err    error
}

func (m *MockNotifier) PublishFaceEvent(ctx context.Context, evt models.FaceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, evt)
	return m.Err
}
