package facegroup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/facegroup/mock"
	"github.com/your-org/facegroup/internal/models"
)

func seedGroups(store *mock.MockStore) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.AddRecord(models.FaceRecord{FaceID: "F1", GroupID: "F1", ImageRef: "face/bob.jpg", CollectionID: "c", CreatedAt: base})
	store.AddRecord(models.FaceRecord{FaceID: "F2", GroupID: "F1", ImageRef: "face/bob2.jpg", CollectionID: "c", CreatedAt: base.Add(time.Minute)})
	store.AddRecord(models.FaceRecord{FaceID: "F3", GroupID: "F3", ImageRef: "face/carol.jpg", CollectionID: "c", CreatedAt: base.Add(2 * time.Minute)})
}

func TestRename_PropagatesToWholeGroupOnly(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)
	notifier := &mock.MockNotifier{}
	svc := facegroup.NewService(store, "c", notifier)
	ctx := context.Background()

	res, err := svc.Rename(ctx, "F2", "Bob")
	require.NoError(t, err)
	assert.Equal(t, facegroup.RenameResult{GroupID: "F1", Updated: 2}, res)

	for _, id := range []string{"F1", "F2"} {
		rec, _ := store.Get(ctx, id)
		require.NotNil(t, rec.DisplayName)
		assert.Equal(t, "Bob", *rec.DisplayName)
	}
	carol, _ := store.Get(ctx, "F3")
	assert.Nil(t, carol.DisplayName)

	require.Len(t, notifier.Events, 1)
	assert.Equal(t, models.FaceEventRenamed, notifier.Events[0].Type)
	assert.Equal(t, "F1", notifier.Events[0].GroupID)
	assert.Equal(t, "Bob", notifier.Events[0].Name)
}

func TestRename_TrimsName(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)

	_, err := facegroup.NewService(store, "c", nil).Rename(context.Background(), "F3", "  Carol ")
	require.NoError(t, err)

	rec, _ := store.Get(context.Background(), "F3")
	assert.Equal(t, "Carol", *rec.DisplayName)
}

func TestRename_UnknownFaceIsNotFoundWithoutWrites(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)

	_, err := facegroup.NewService(store, "c", nil).Rename(context.Background(), "NOPE", "X")
	assert.ErrorIs(t, err, facegroup.ErrNotFound)
	assert.Empty(t, store.UpdateCalls)
}

func TestRename_BlankNameRejected(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)

	_, err := facegroup.NewService(store, "c", nil).Rename(context.Background(), "F1", "   ")
	assert.ErrorIs(t, err, facegroup.ErrInvalidName)
	assert.Empty(t, store.UpdateCalls)
}

func TestRename_PartialFailureKeepsAppliedUpdates(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)
	store.UpdateError["F2"] = errors.New("conditional check failed")
	notifier := &mock.MockNotifier{}

	res, err := facegroup.NewService(store, "c", notifier).Rename(context.Background(), "F1", "Bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, facegroup.ErrPartialRename)

	var partial *facegroup.PartialRenameError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Updated)
	assert.Equal(t, 2, partial.Total)
	assert.Equal(t, 1, res.Updated)

	f1, _ := store.Get(context.Background(), "F1")
	require.NotNil(t, f1.DisplayName)
	assert.Equal(t, "Bob", *f1.DisplayName)
	assert.Empty(t, notifier.Events)
}

func TestRename_FirstUpdateFailureIsNotPartial(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)
	store.UpdateError["F1"] = errors.New("throttled")

	res, err := facegroup.NewService(store, "c", nil).Rename(context.Background(), "F2", "Bob")
	require.Error(t, err)
	assert.NotErrorIs(t, err, facegroup.ErrPartialRename)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, []string{"F1"}, store.UpdateCalls)

	f2, _ := store.Get(context.Background(), "F2")
	assert.Nil(t, f2.DisplayName)
}

func TestRename_ScanFailureIsNotPartial(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)
	store.ScanError = errors.New("scan down")

	_, err := facegroup.NewService(store, "c", nil).Rename(context.Background(), "F1", "Bob")
	require.Error(t, err)
	assert.NotErrorIs(t, err, facegroup.ErrPartialRename)
	assert.Empty(t, store.UpdateCalls)
}

func TestRename_UsesAtomicGroupRename(t *testing.T) {
	store := mock.NewMockAtomicStore()
	seedGroups(store.MockStore)

	res, err := facegroup.NewService(store, "c", nil).Rename(context.Background(), "F1", "Bob")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, store.RenameGroupCalls)
	assert.Empty(t, store.UpdateCalls)
}

func TestRename_ScenarioThenRenameAgain(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)
	svc := facegroup.NewService(store, "c", nil)
	ctx := context.Background()

	_, err := svc.Rename(ctx, "F2", "Bob")
	require.NoError(t, err)
	_, err = svc.Rename(ctx, "F1", "Robert")
	require.NoError(t, err)

	for _, id := range []string{"F1", "F2"} {
		rec, _ := store.Get(ctx, id)
		assert.Equal(t, "Robert", rec.Name())
	}
}

func TestList_AppliesFilter(t *testing.T) {
	store := mock.NewMockStore()
	seedGroups(store)
	store.AddRecord(models.FaceRecord{FaceID: "X1", GroupID: "X1", CollectionID: "other"})
	svc := facegroup.NewService(store, "c", nil)
	ctx := context.Background()

	all, err := svc.List(ctx, facegroup.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	inCollection, err := svc.List(ctx, facegroup.Filter{CollectionID: "c"})
	require.NoError(t, err)
	assert.Len(t, inCollection, 3)

	group, err := svc.List(ctx, facegroup.Filter{GroupID: "F1"})
	require.NoError(t, err)
	require.Len(t, group, 2)
	assert.Equal(t, "F1", group[0].FaceID)
	assert.Equal(t, "F2", group[1].FaceID)
}

func TestGet_NotFound(t *testing.T) {
	_, err := facegroup.NewService(mock.NewMockStore(), "c", nil).Get(context.Background(), "F404")
	assert.ErrorIs(t, err, facegroup.ErrNotFound)
}

func TestFilter_NameContainsIsCaseInsensitive(t *testing.T) {
	name := "Dhruv Patel"
	rec := models.FaceRecord{FaceID: "F1", DisplayName: &name}

	assert.True(t, facegroup.Filter{NameContains: "dhruv"}.Matches(rec))
	assert.False(t, facegroup.Filter{NameContains: "alice"}.Matches(rec))
	assert.False(t, facegroup.Filter{NameContains: "x"}.Matches(models.FaceRecord{}))
}
