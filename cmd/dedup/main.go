// Command dedup runs one deduplication pass over the catalog's raw
// listings and exits. It is the operational entry point for the
// deduplication engine: wire a Postgres-backed repository, an
// optional embedding service, and an optional Redis lifecycle-event
// producer, then run.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository/postgres"
	"github.com/vncatalog/dedup-engine/internal/catalog/vectorize"
	"github.com/vncatalog/dedup-engine/internal/job"
	"github.com/vncatalog/dedup-engine/pkg/constants"
	"github.com/vncatalog/dedup-engine/pkg/redis"
)

func main() {
	mode := flag.String("mode", "incremental", "fresh or incremental")
	batchSize := flag.Int("batch-size", 500, "raw listings read per batch")
	minMatchScore := flag.Float64("min-match-score", 0.75, "floor for clustering/cross-source acceptance")
	crossSource := flag.Bool("cross-source", true, "run cross-source linking (phase 4)")
	embeddingEnabled := flag.Bool("embeddings", false, "call the embedding service for the semantic feature")
	embeddingURL := flag.String("embedding-url", "", "base URL of the embedding service (required with -embeddings)")
	jsonLogs := flag.Bool("json-logs", true, "emit structured JSON logs instead of text")
	flag.Parse()

	logger := newLogger(*jsonLogs)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.OpenPool(ctx, dbConfigFromEnv())
	if err != nil {
		logger.Error("dedup: open database pool", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := postgres.New(db)
	redisClient := redisClientFromEnv()

	var vectorizer vectorize.Vectorizer
	if *embeddingEnabled {
		if *embeddingURL == "" {
			logger.Error("dedup: -embedding-url is required with -embeddings")
			os.Exit(1)
		}
		raw := vectorize.NewHTTPClient(*embeddingURL, 768)
		cached := vectorize.NewCache(raw, 10_000)
		if redisClient != nil {
			vectorizer = vectorize.NewRedisFallbackCache(redisClient, cached, 24*time.Hour)
		} else {
			vectorizer = cached
		}
	}

	runner := job.New(repo, vectorizer, logger)
	var producer *redis.StreamProducer
	if redisClient != nil {
		producer = redis.NewStreamProducer(redisClient, logger)
		runner = runner.WithStreamProducer(producer)
	}

	jobMode := model.JobModeIncremental
	if *mode == string(model.JobModeFresh) {
		jobMode = model.JobModeFresh
	}

	cfg := job.Config{
		Mode:               jobMode,
		BatchSize:          *batchSize,
		MinMatchScore:      *minMatchScore,
		EmbeddingEnabled:   *embeddingEnabled,
		CrossSourceEnabled: *crossSource,
	}

	result, err := runner.Deduplicate(ctx, cfg, func(e job.ProgressEvent) {
		logger.Info("dedup: progress",
			"phase", e.Phase,
			"processed", e.ProcessedProducts,
			"total", e.TotalProducts,
			"current_source", e.CurrentSource,
			"batch", e.CurrentBatch,
			"total_batches", e.TotalBatches,
			"matches_found", e.MatchesFound,
			"elapsed_ms", e.TimeElapsedMs,
			"eta_ms", e.EstimatedTimeRemainingMs,
			"message", e.Message,
		)
	})
	if err != nil {
		logger.Error("dedup: run failed", "job_id", result.ID, "error", err)
		os.Exit(1)
	}

	logger.Info("dedup: run completed",
		"job_id", result.ID,
		"processed", result.Processed,
		"canonical_created", result.CanonicalCreated,
		"mappings_created", result.MappingsCreated,
		"elapsed_ms", result.ElapsedMs,
	)

	if producer != nil {
		if err := producer.TrimStream(ctx, constants.StreamDedupJobs, streamMaxLen); err != nil {
			logger.Warn("dedup: trim lifecycle stream", "stream", constants.StreamDedupJobs, "error", err)
		}
	}
}

// streamMaxLen caps the lifecycle stream after each run; dashboards tail
// the recent entries, nothing replays the full history.
const streamMaxLen = 10_000

func newLogger(jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func dbConfigFromEnv() postgres.Config {
	port, _ := strconv.Atoi(envOr("DEDUP_DB_PORT", "5432"))
	maxOpen, _ := strconv.Atoi(envOr("DEDUP_DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(envOr("DEDUP_DB_MAX_IDLE_CONNS", "5"))
	return postgres.Config{
		Host:            envOr("DEDUP_DB_HOST", "localhost"),
		Port:            port,
		User:            envOr("DEDUP_DB_USER", "dedup"),
		Password:        os.Getenv("DEDUP_DB_PASSWORD"),
		Database:        envOr("DEDUP_DB_NAME", "dedup_engine"),
		SSLMode:         envOr("DEDUP_DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: time.Hour,
	}
}

// redisClientFromEnv builds a Redis client for the lifecycle-event
// stream and embedding fallback cache, or returns nil when no address
// is configured (both are optional side channels).
func redisClientFromEnv() *goredis.Client {
	addr := os.Getenv("DEDUP_REDIS_ADDR")
	if addr == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: os.Getenv("DEDUP_REDIS_PASSWORD"),
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
