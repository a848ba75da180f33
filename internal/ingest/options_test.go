package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/facegroup/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Ingest: config.IngestConfig{
			Sources:        []string{"minio:s3"},
			Bucket:         "photos",
			KeyPrefix:      "face/",
			KeySuffix:      ".jpg",
			TempSuffix:     "_temp.jpg",
			CallTimeout:    5 * time.Second,
			ConfirmTimeout: 2 * time.Second,
		},
		Matching: config.MatchingConfig{CollectionID: "family"},
	}

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, RecordFilter{
		Sources:    []string{"minio:s3"},
		Bucket:     "photos",
		KeyPrefix:  "face/",
		KeySuffix:  ".jpg",
		TempSuffix: "_temp.jpg",
	}, opts.Filter)
	assert.Equal(t, "family", opts.CollectionID)
	assert.Equal(t, 5*time.Second, opts.CallTimeout)
	assert.Equal(t, 2*time.Second, opts.ConfirmTimeout)
}
