package models

import "time"

// FaceRecord is one detected face. A group is the set of records sharing
// GroupID; there is no separate group row.
type FaceRecord struct {
	FaceID       string    `json:"face_id" db:"face_id"`
	GroupID      string    `json:"group_id" db:"group_id"`
	ImageRef     string    `json:"image_ref" db:"image_ref"`
	DisplayName  *string   `json:"display_name,omitempty" db:"display_name"`
	CollectionID string    `json:"collection_id" db:"collection_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Name returns the display name or "" when the group is unnamed.
func (r FaceRecord) Name() string {
	if r.DisplayName == nil {
		return ""
	}
	return *r.DisplayName
}
