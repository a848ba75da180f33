package ingest

import "github.com/your-org/facegroup/internal/config"

// OptionsFromConfig builds pipeline options from the ingest and matching
// sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Filter: RecordFilter{
			Sources:    cfg.Ingest.Sources,
			Bucket:     cfg.Ingest.Bucket,
			KeyPrefix:  cfg.Ingest.KeyPrefix,
			KeySuffix:  cfg.Ingest.KeySuffix,
			TempSuffix: cfg.Ingest.TempSuffix,
		},
		CollectionID:   cfg.Matching.CollectionID,
		CallTimeout:    cfg.Ingest.CallTimeout,
		ConfirmTimeout: cfg.Ingest.ConfirmTimeout,
	}
}
