package dto

import (
	"time"

	"github.com/your-org/facegroup/internal/models"
)

type FaceResponse struct {
	FaceID       string `json:"faceId"`
	GroupID      string `json:"groupId"`
	ImageRef     string `json:"imageRef"`
	DisplayName  string `json:"displayName,omitempty"`
	CollectionID string `json:"collectionId"`
	ImageURL     string `json:"imageUrl"`
	CreatedAt    string `json:"createdAt"`
}

type FaceListResponse struct {
	Faces []FaceResponse `json:"faces"`
	Total int            `json:"total"`
}

type FaceQuery struct {
	CollectionID string `form:"collection_id"`
	GroupID      string `form:"group_id"`
	Name         string `form:"name"`
}

type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

// NameRequest is the body of POST /name.
type NameRequest struct {
	FaceID string `json:"faceId" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

type RenameResponse struct {
	FaceID  string `json:"faceId"`
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
	Updated int    `json:"updated"`
}

type WebhookResponse struct {
	Kind       string   `json:"kind"`
	Created    []string `json:"created"`
	Skipped    int      `json:"skipped"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
}

// WSEvent is a WebSocket message for live gallery updates.
type WSEvent struct {
	Type         string         `json:"type"` // face_indexed, face_renamed
	CollectionID string         `json:"collectionId"`
	GroupID      string         `json:"groupId"`
	Name         string         `json:"name,omitempty"`
	Faces        []FaceResponse `json:"faces,omitempty"`
	Timestamp    string         `json:"timestamp"`
}

// NewFaceResponse converts a stored record for the API.
func NewFaceResponse(r models.FaceRecord) FaceResponse {
	return FaceResponse{
		FaceID:       r.FaceID,
		GroupID:      r.GroupID,
		ImageRef:     r.ImageRef,
		DisplayName:  r.Name(),
		CollectionID: r.CollectionID,
		ImageURL:     "/faces/" + r.FaceID + "/image",
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}

func NewWSEvent(evt models.FaceEvent) WSEvent {
	out := WSEvent{
		Type:         evt.Type,
		CollectionID: evt.CollectionID,
		GroupID:      evt.GroupID,
		Name:         evt.Name,
		Timestamp:    evt.Timestamp.Format(time.RFC3339),
	}
	for _, f := range evt.Faces {
		out.Faces = append(out.Faces, NewFaceResponse(f))
	}
	return out
}
