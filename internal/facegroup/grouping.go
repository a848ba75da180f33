package facegroup

import (
	"context"
	"fmt"
	"log/slog"
)

// Assignment is the grouping decision for one new face.
type Assignment struct {
	GroupID       string
	MatchedFaceID string
	Similarity    float64
	// Fresh is true when the face starts its own group.
	Fresh bool
}

// Grouper assigns new faces to groups. Clustering is greedy and single pass:
// a face copies the group of its best stored match and groups are never
// merged or split afterwards.
type Grouper struct {
	matcher   Matcher
	store     Store
	threshold float64
}

func NewGrouper(matcher Matcher, store Store, threshold float64) *Grouper {
	return &Grouper{matcher: matcher, store: store, threshold: threshold}
}

// Assign picks the group for faceID. The first match in matcher order that
// clears the threshold wins; ties are not re-ranked. If the matched face has
// no stored record the new face starts a fresh group.
func (g *Grouper) Assign(ctx context.Context, faceID string) (Assignment, error) {
	fresh := Assignment{GroupID: faceID, Fresh: true}

	matches, err := g.matcher.FindSimilar(ctx, faceID, g.threshold)
	if err != nil {
		return Assignment{}, fmt.Errorf("%w: find similar to %s: %v", ErrDetectionFailed, faceID, err)
	}

	best, ok := g.firstAboveThreshold(matches, faceID)
	if !ok {
		return fresh, nil
	}

	rec, err := g.store.Get(ctx, best.FaceID)
	if err != nil {
		slog.Warn("lookup matched face failed, starting new group",
			"face_id", faceID, "matched_face_id", best.FaceID, "error", err)
		return fresh, nil
	}
	if rec == nil || rec.GroupID == "" {
		slog.Warn("matched face has no stored record, starting new group",
			"face_id", faceID, "matched_face_id", best.FaceID)
		return fresh, nil
	}

	return Assignment{
		GroupID:       rec.GroupID,
		MatchedFaceID: best.FaceID,
		Similarity:    best.Similarity,
	}, nil
}

func (g *Grouper) firstAboveThreshold(matches []Match, self string) (Match, bool) {
	for _, m := range matches {
		if m.FaceID == self || m.Similarity < g.threshold {
			continue
		}
		return m, true
	}
	return Match{}, false
}
