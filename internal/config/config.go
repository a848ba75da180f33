package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Matching MatchingConfig `yaml:"matching"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	// NotifyARN, when set, is the bucket notification target the worker
	// registers for uploads.
	NotifyARN string `yaml:"notify_arn"`
}

// IngestConfig controls which storage notifications the pipeline accepts.
type IngestConfig struct {
	Sources     []string      `yaml:"sources"`
	Bucket      string        `yaml:"bucket"`
	KeyPrefix   string        `yaml:"key_prefix"`
	KeySuffix   string        `yaml:"key_suffix"`
	TempSuffix  string        `yaml:"temp_suffix"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	WorkerCount int           `yaml:"worker_count"`
	// ConfirmTimeout bounds the subscription confirmation fetch.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	// ConfirmHostSuffix restricts which hosts a SubscribeURL may point at.
	// Empty disables the check.
	ConfirmHostSuffix string `yaml:"confirm_host_suffix"`
}

type MatchingConfig struct {
	ModelsDir           string  `yaml:"models_dir"`
	CollectionID        string  `yaml:"collection_id"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxMatches          int     `yaml:"max_matches"`
	DetectionThreshold  float64 `yaml:"detection_threshold"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	t := c.Matching.SimilarityThreshold
	if t <= 0 || t > 100 {
		return fmt.Errorf("matching.similarity_threshold must be in (0, 100], got %v", t)
	}
	if c.Ingest.Bucket == "" {
		return fmt.Errorf("ingest.bucket is required")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4000
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if len(cfg.Ingest.Sources) == 0 {
		cfg.Ingest.Sources = []string{"aws:s3", "minio:s3"}
	}
	if cfg.Ingest.Bucket == "" {
		cfg.Ingest.Bucket = cfg.MinIO.Bucket
	}
	if cfg.Ingest.KeyPrefix == "" {
		cfg.Ingest.KeyPrefix = "face/"
	}
	if cfg.Ingest.KeySuffix == "" {
		cfg.Ingest.KeySuffix = ".jpg"
	}
	if cfg.Ingest.TempSuffix == "" {
		cfg.Ingest.TempSuffix = "_temp.jpg"
	}
	if cfg.Ingest.CallTimeout == 0 {
		cfg.Ingest.CallTimeout = 15 * time.Second
	}
	if cfg.Ingest.WorkerCount == 0 {
		cfg.Ingest.WorkerCount = 4
	}
	if cfg.Ingest.ConfirmTimeout == 0 {
		cfg.Ingest.ConfirmTimeout = 10 * time.Second
	}
	if cfg.Matching.CollectionID == "" {
		cfg.Matching.CollectionID = "face-collection"
	}
	if cfg.Matching.SimilarityThreshold == 0 {
		cfg.Matching.SimilarityThreshold = 85
	}
	if cfg.Matching.MaxMatches == 0 {
		cfg.Matching.MaxMatches = 10
	}
	if cfg.Matching.DetectionThreshold == 0 {
		cfg.Matching.DetectionThreshold = 0.5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FG_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FG_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FG_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FG_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FG_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FG_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FG_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FG_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FG_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FG_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FG_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FG_INGEST_SOURCES"); v != "" {
		cfg.Ingest.Sources = splitList(v)
	}
	if v := os.Getenv("FG_INGEST_BUCKET"); v != "" {
		cfg.Ingest.Bucket = v
	}
	if v := os.Getenv("FG_INGEST_KEY_PREFIX"); v != "" {
		cfg.Ingest.KeyPrefix = v
	}
	if v := os.Getenv("FG_INGEST_KEY_SUFFIX"); v != "" {
		cfg.Ingest.KeySuffix = v
	}
	if v := os.Getenv("FG_COLLECTION_ID"); v != "" {
		cfg.Matching.CollectionID = v
	}
	if v := os.Getenv("FG_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("FG_MODELS_DIR"); v != "" {
		cfg.Matching.ModelsDir = v
	}
	if v := os.Getenv("FG_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.WorkerCount = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
