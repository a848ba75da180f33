package models

import "time"

const (
	FaceEventIndexed = "face_indexed"
	FaceEventRenamed = "face_renamed"
)

// FaceEvent is published to the FACES stream after a face is stored or a
// group is renamed.
type FaceEvent struct {
	Type         string       `json:"type"`
	CollectionID string       `json:"collection_id"`
	GroupID      string       `json:"group_id"`
	Faces        []FaceRecord `json:"faces,omitempty"`
	Name         string       `json:"name,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}
