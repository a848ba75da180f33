//go:build integration

package storage

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/models"
)

func setupTestContainer(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "facegroup",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/facegroup?sslmode=disable", host, port.Port())
	store, err := NewPostgresStoreFromDSN(dsn, 5)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	return store
}

func face(id, group, key string, at time.Time) models.FaceRecord {
	return models.FaceRecord{FaceID: id, GroupID: group, ImageRef: key, CollectionID: "face-collection", CreatedAt: at}
}

// unitVector returns a 512-d vector at angle deg from the first axis.
func unitVector(deg float64) []float32 {
	v := make([]float32, 512)
	rad := deg * math.Pi / 180
	v[0] = float32(math.Cos(rad))
	v[1] = float32(math.Sin(rad))
	return v
}

func TestPostgresStore(t *testing.T) {
	store := setupTestContainer(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("migrate is repeatable", func(t *testing.T) {
		require.NoError(t, store.Migrate(ctx))
	})

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, face("F1", "F1", "face/bob.jpg", t0)))
		require.NoError(t, store.Put(ctx, face("F2", "F1", "face/bob2.jpg", t0.Add(time.Minute))))
		require.NoError(t, store.Put(ctx, face("F3", "F3", "face/eve.jpg", t0.Add(2*time.Minute))))

		rec, err := store.Get(ctx, "F2")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "F1", rec.GroupID)
		assert.Nil(t, rec.DisplayName)
		assert.True(t, rec.CreatedAt.Equal(t0.Add(time.Minute)))

		missing, err := store.Get(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("second record for an image is rejected", func(t *testing.T) {
		err := store.Put(ctx, face("F9", "F9", "face/bob.jpg", t0))
		assert.ErrorIs(t, err, facegroup.ErrDuplicateImage)

		rec, err := store.Get(ctx, "F9")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("scan filters", func(t *testing.T) {
		byImage, err := store.Scan(ctx, facegroup.Filter{ImageRef: "face/bob2.jpg"})
		require.NoError(t, err)
		require.Len(t, byImage, 1)
		assert.Equal(t, "F2", byImage[0].FaceID)

		group, err := store.Scan(ctx, facegroup.Filter{GroupID: "F1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"F1", "F2"}, ids(group))

		none, err := store.Scan(ctx, facegroup.Filter{CollectionID: "other"})
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("rename group through the service", func(t *testing.T) {
		svc := facegroup.NewService(store, "face-collection", nil)
		res, err := svc.Rename(ctx, "F2", "Bob")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Updated)

		named, err := store.Scan(ctx, facegroup.Filter{NameContains: "bo"})
		require.NoError(t, err)
		assert.Equal(t, []string{"F1", "F2"}, ids(named))

		eve, err := store.Get(ctx, "F3")
		require.NoError(t, err)
		assert.Empty(t, eve.Name())
	})

	t.Run("update missing face", func(t *testing.T) {
		name := "x"
		err := store.Update(ctx, "nope", facegroup.Changes{DisplayName: &name})
		assert.ErrorIs(t, err, facegroup.ErrNotFound)
	})

	t.Run("vector search", func(t *testing.T) {
		require.NoError(t, store.AddFaceVector(ctx, "V1", "face-collection", "face/a.jpg", unitVector(0), 0.9))
		require.NoError(t, store.AddFaceVector(ctx, "V2", "face-collection", "face/b.jpg", unitVector(10), 0.9))
		require.NoError(t, store.AddFaceVector(ctx, "V3", "face-collection", "face/c.jpg", unitVector(80), 0.9))
		require.NoError(t, store.AddFaceVector(ctx, "V4", "other", "face/d.jpg", unitVector(1), 0.9))
		for _, rec := range []models.FaceRecord{
			face("V2", "V2", "face/b.jpg", t0),
			face("V3", "V3", "face/c.jpg", t0),
			{FaceID: "V4", GroupID: "V4", ImageRef: "face/d.jpg", CollectionID: "other", CreatedAt: t0},
		} {
			require.NoError(t, store.Put(ctx, rec))
		}
		// V5 is closer to V1 than V2 but has no record.
		require.NoError(t, store.AddFaceVector(ctx, "V5", "face-collection", "face/e.jpg", unitVector(5), 0.9))

		matches, err := store.SearchSimilarFaces(ctx, "V1", 0.85, 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "V2", matches[0].FaceID)
		assert.InDelta(t, math.Cos(10*math.Pi/180), matches[0].Similarity, 1e-4)

		require.NoError(t, store.DeleteFaceVector(ctx, "V2"))
		matches, err = store.SearchSimilarFaces(ctx, "V1", 0.85, 10)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func ids(recs []models.FaceRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.FaceID)
	}
	return out
}
