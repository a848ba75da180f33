package facegroup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/your-org/facegroup/internal/models"
	"github.com/your-org/facegroup/internal/observability"
)

// Service is the read and rename API over stored faces.
type Service struct {
	store        Store
	collectionID string
	notifier     Notifier
}

// NewService returns a Service whose List defaults to collectionID.
// notifier may be nil.
func NewService(store Store, collectionID string, notifier Notifier) *Service {
	return &Service{store: store, collectionID: collectionID, notifier: notifier}
}

// CollectionID returns the active collection.
func (s *Service) CollectionID() string {
	return s.collectionID
}

// List returns the faces matching filter. No paging is applied.
func (s *Service) List(ctx context.Context, filter Filter) ([]models.FaceRecord, error) {
	faces, err := s.store.Scan(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	return faces, nil
}

func (s *Service) Get(ctx context.Context, faceID string) (*models.FaceRecord, error) {
	rec, err := s.store.Get(ctx, faceID)
	if err != nil {
		return nil, fmt.Errorf("get face %s: %w", faceID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("get face %s: %w", faceID, ErrNotFound)
	}
	return rec, nil
}

// RenameResult describes a completed rename.
type RenameResult struct {
	GroupID string `json:"group_id"`
	Updated int    `json:"updated"`
}

// Rename sets name on every face in faceID's group. An unknown face fails
// with ErrNotFound before any write. When the store cannot rename a group
// atomically each member is updated in turn. A failure after at least one
// update returns a *PartialRenameError without undoing earlier updates.
func (s *Service) Rename(ctx context.Context, faceID, name string) (RenameResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RenameResult{}, ErrInvalidName
	}

	rec, err := s.store.Get(ctx, faceID)
	if err != nil {
		return RenameResult{}, fmt.Errorf("resolve group of %s: %w", faceID, err)
	}
	if rec == nil {
		observability.Renames.WithLabelValues("not_found").Inc()
		return RenameResult{}, fmt.Errorf("rename %s: %w", faceID, ErrNotFound)
	}
	groupID := rec.GroupID

	var updated int
	if gr, ok := s.store.(GroupRenamer); ok {
		updated, err = gr.RenameGroup(ctx, groupID, name)
		if err != nil {
			observability.Renames.WithLabelValues("error").Inc()
			return RenameResult{}, fmt.Errorf("rename group %s: %w", groupID, err)
		}
	} else {
		updated, err = s.scatterRename(ctx, groupID, name)
		if err != nil {
			result := "error"
			if errors.Is(err, ErrPartialRename) {
				result = "partial"
			}
			observability.Renames.WithLabelValues(result).Inc()
			return RenameResult{GroupID: groupID, Updated: updated}, err
		}
	}

	observability.Renames.WithLabelValues("ok").Inc()
	slog.Info("group renamed", "face_id", faceID, "group_id", groupID, "updated", updated)

	s.notify(ctx, models.FaceEvent{
		Type:         models.FaceEventRenamed,
		CollectionID: rec.CollectionID,
		GroupID:      groupID,
		Name:         name,
		Timestamp:    time.Now().UTC(),
	})

	return RenameResult{GroupID: groupID, Updated: updated}, nil
}

func (s *Service) scatterRename(ctx context.Context, groupID, name string) (int, error) {
	members, err := s.store.Scan(ctx, Filter{GroupID: groupID})
	if err != nil {
		return 0, fmt.Errorf("scan group %s: %w", groupID, err)
	}

	changes := Changes{DisplayName: &name}
	for i, m := range members {
		if err := s.store.Update(ctx, m.FaceID, changes); err != nil {
			if i == 0 {
				return 0, fmt.Errorf("update %s: %w", m.FaceID, err)
			}
			return i, &PartialRenameError{
				GroupID: groupID,
				Updated: i,
				Total:   len(members),
				Err:     fmt.Errorf("update %s: %w", m.FaceID, err),
			}
		}
	}
	return len(members), nil
}

func (s *Service) notify(ctx context.Context, evt models.FaceEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishFaceEvent(ctx, evt); err != nil {
		slog.Warn("publish face event", "type", evt.Type, "group_id", evt.GroupID, "error", err)
	}
}
