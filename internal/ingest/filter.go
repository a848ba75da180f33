package ingest

import (
	"net/url"
	"slices"
	"strings"

	"github.com/your-org/facegroup/internal/models"
)

// RecordFilter decides which storage records describe uploads the pipeline
// should index.
type RecordFilter struct {
	Sources    []string
	Bucket     string
	KeyPrefix  string
	KeySuffix  string
	TempSuffix string
}

// Check returns the decoded object key and "" when rec should be processed,
// or the reason it is skipped.
func (f RecordFilter) Check(rec models.StorageRecord) (key, reason string) {
	if !slices.Contains(f.Sources, rec.EventSource) {
		return "", "unexpected source " + rec.EventSource
	}
	if f.Bucket != "" && rec.S3.Bucket.Name != f.Bucket {
		return "", "unexpected bucket " + rec.S3.Bucket.Name
	}

	key = decodeKey(rec.S3.Object.Key)
	switch {
	case key == "":
		return "", "empty key"
	case !strings.HasPrefix(key, f.KeyPrefix):
		return key, "key outside prefix"
	case !strings.HasSuffix(key, f.KeySuffix):
		return key, "unexpected extension"
	case f.TempSuffix != "" && strings.HasSuffix(key, f.TempSuffix):
		return key, "temporary object"
	}
	return key, ""
}

// decodeKey undoes the form encoding S3 and MinIO apply to object keys in
// notifications ("my+photo.jpg" is "my photo.jpg").
func decodeKey(raw string) string {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return key
}
