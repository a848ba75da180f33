package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facegroup/internal/config"
	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/ingest"
	"github.com/your-org/facegroup/internal/matching"
	"github.com/your-org/facegroup/internal/observability"
	"github.com/your-org/facegroup/internal/queue"
	"github.com/your-org/facegroup/internal/storage"
	"github.com/your-org/facegroup/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", ":8082", "address for /metrics and /healthz")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facegroup worker",
		"workers", cfg.Ingest.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
		"bucket", cfg.Ingest.Bucket,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := vision.InitRuntime(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer vision.DestroyRuntime()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}
	if cfg.MinIO.NotifyARN != "" {
		err := minioStore.EnableUploadNotifications(ctx, cfg.MinIO.NotifyARN, cfg.Ingest.KeyPrefix, cfg.Ingest.KeySuffix)
		if err != nil {
			slog.Warn("enable upload notifications", "arn", cfg.MinIO.NotifyARN, "error", err)
		} else {
			slog.Info("upload notifications enabled", "arn", cfg.MinIO.NotifyARN)
		}
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	extractor, err := vision.NewExtractor(cfg.Matching.ModelsDir, cfg.Matching.DetectionThreshold)
	if err != nil {
		slog.Error("load face models", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	matcher := matching.NewVectorMatcher(minioStore, extractor, db, cfg.Matching.CollectionID, cfg.Matching.MaxMatches)
	grouper := facegroup.NewGrouper(matcher, db, cfg.Matching.SimilarityThreshold)
	confirmer := ingest.NewHTTPConfirmer(&http.Client{Timeout: cfg.Ingest.ConfirmTimeout}, cfg.Ingest.ConfirmHostSuffix)
	pipeline := ingest.NewPipeline(matcher, db, grouper, confirmer, producer, ingest.OptionsFromConfig(cfg))

	slog.Info("ingestion pipeline initialized")

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeUploads(ctx, "facegroup-workers", func(ctx context.Context, msg jetstream.Msg) error {
		res, err := pipeline.Handle(ctx, msg.Data())
		if errors.Is(err, facegroup.ErrMalformedPayload) {
			return queue.Terminal(err)
		}
		if err != nil {
			return err
		}
		slog.Debug("notification processed", "subject", msg.Subject(),
			"created", len(res.Created), "skipped", res.Skipped, "duplicates", res.Duplicates, "failed", res.Failed)
		return nil
	}, cfg.Ingest.WorkerCount)
	if err != nil {
		slog.Error("start upload consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
