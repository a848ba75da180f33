package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facegroup/internal/api"
	"github.com/your-org/facegroup/internal/api/handlers"
	"github.com/your-org/facegroup/internal/api/ws"
	"github.com/your-org/facegroup/internal/config"
	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/internal/ingest"
	"github.com/your-org/facegroup/internal/matching"
	"github.com/your-org/facegroup/internal/models"
	"github.com/your-org/facegroup/internal/observability"
	"github.com/your-org/facegroup/internal/queue"
	"github.com/your-org/facegroup/internal/storage"
	"github.com/your-org/facegroup/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facegroup API",
		"port", cfg.Server.Port,
		"collection_id", cfg.Matching.CollectionID,
		"similarity_threshold", cfg.Matching.SimilarityThreshold,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Face detection and embedding
	if err := vision.InitRuntime(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer vision.DestroyRuntime()

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
	service := facegroup.NewService(db, cfg.Matching.CollectionID, producer)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Fan face events out to websocket clients
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create face event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeFaceEvents(ctx, "api-face-events", func(ctx context.Context, msg jetstream.Msg) error {
		var evt models.FaceEvent
		if err := json.Unmarshal(msg.Data(), &evt); err != nil {
			return queue.Terminal(fmt.Errorf("decode face event: %w", err))
		}
		hub.BroadcastEvent(evt)
		return nil
	})
	if err != nil {
		slog.Warn("start face event consumer", "error", err)
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Pipeline: pipeline,
		Service:  service,
		Images:   minioStore,
		Hub:      hub,
		Checks: []handlers.Check{
			{Name: "postgres", Ping: db.Ping},
			{Name: "minio", Ping: minioStore.Ping},
			{Name: "nats", Ping: func(context.Context) error { return producer.Ping() }},
		},
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("API server stopped")
}
