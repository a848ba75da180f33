package facegroup

import (
	"context"
	"strings"

	"github.com/your-org/facegroup/internal/models"
)

// Match is one similar face returned by a Matcher. Similarity is a
// percentage in [0, 100].
type Match struct {
	FaceID     string  `json:"face_id"`
	Similarity float64 `json:"similarity"`
}

// Matcher is the face matching capability. Detect indexes the most
// prominent face in the image and returns its new identifier; found is false
// when the image has no usable face. FindSimilar returns matches at or above
// threshold, best first, never including faceID itself.
type Matcher interface {
	Detect(ctx context.Context, imageRef string) (faceID string, found bool, err error)
	FindSimilar(ctx context.Context, faceID string, threshold float64) ([]Match, error)
}

// Forgetter is implemented by matchers that can drop an indexed face, used
// when a face was indexed for an image that turned out to be a duplicate.
type Forgetter interface {
	Forget(ctx context.Context, faceID string) error
}

// Filter selects face records in a Scan. Empty fields match everything.
type Filter struct {
	CollectionID string
	GroupID      string
	ImageRef     string
	// NameContains is a case-insensitive substring match on the display name.
	NameContains string
}

// Matches reports whether r satisfies the filter.
func (f Filter) Matches(r models.FaceRecord) bool {
	if f.CollectionID != "" && r.CollectionID != f.CollectionID {
		return false
	}
	if f.GroupID != "" && r.GroupID != f.GroupID {
		return false
	}
	if f.ImageRef != "" && r.ImageRef != f.ImageRef {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(r.Name()), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

// Changes is a partial update of a face record. Only DisplayName is mutable.
type Changes struct {
	DisplayName *string
}

// Store is the durable face metadata store. Get returns (nil, nil) when the
// face does not exist. Put returns ErrDuplicateImage if the store enforces
// image uniqueness and the image already has a record. Update returns
// ErrNotFound for an unknown face.
type Store interface {
	Get(ctx context.Context, faceID string) (*models.FaceRecord, error)
	Put(ctx context.Context, rec models.FaceRecord) error
	Scan(ctx context.Context, filter Filter) ([]models.FaceRecord, error)
	Update(ctx context.Context, faceID string, changes Changes) error
}

// GroupRenamer is implemented by stores that can rename a whole group in a
// single atomic write.
type GroupRenamer interface {
	RenameGroup(ctx context.Context, groupID, name string) (int, error)
}

// Notifier receives face events after they are committed. Publishing is best
// effort; failures are logged by callers.
type Notifier interface {
	PublishFaceEvent(ctx context.Context, evt models.FaceEvent) error
}
