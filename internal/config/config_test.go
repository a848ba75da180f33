package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "minio:\n  bucket: photos\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "photos", cfg.Ingest.Bucket)
	assert.Equal(t, []string{"aws:s3", "minio:s3"}, cfg.Ingest.Sources)
	assert.Equal(t, "face/", cfg.Ingest.KeyPrefix)
	assert.Equal(t, ".jpg", cfg.Ingest.KeySuffix)
	assert.Equal(t, "_temp.jpg", cfg.Ingest.TempSuffix)
	assert.Equal(t, 15*time.Second, cfg.Ingest.CallTimeout)
	assert.Equal(t, 85.0, cfg.Matching.SimilarityThreshold)
	assert.Equal(t, 10, cfg.Matching.MaxMatches)
	assert.Equal(t, "face-collection", cfg.Matching.CollectionID)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
ingest:
  bucket: uploads
  sources: [aws:s3]
  key_prefix: people/
  call_timeout: 3s
matching:
  similarity_threshold: 92.5
  collection_id: family
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "uploads", cfg.Ingest.Bucket)
	assert.Equal(t, []string{"aws:s3"}, cfg.Ingest.Sources)
	assert.Equal(t, "people/", cfg.Ingest.KeyPrefix)
	assert.Equal(t, 3*time.Second, cfg.Ingest.CallTimeout)
	assert.Equal(t, 92.5, cfg.Matching.SimilarityThreshold)
	assert.Equal(t, "family", cfg.Matching.CollectionID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "ingest:\n  bucket: uploads\n")
	t.Setenv("FG_SIMILARITY_THRESHOLD", "90")
	t.Setenv("FG_INGEST_SOURCES", "minio:s3, custom:store ,")
	t.Setenv("FG_SERVER_PORT", "8088")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90.0, cfg.Matching.SimilarityThreshold)
	assert.Equal(t, []string{"minio:s3", "custom:store"}, cfg.Ingest.Sources)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, "ingest:\n  bucket: uploads\nmatching:\n  similarity_threshold: 140\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "similarity_threshold")
}

func TestLoad_RequiresBucket(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "ingest.bucket")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
