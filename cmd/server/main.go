// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "bird-analysis-service/docs"
	"bird-analysis-service/internal/cache"
	"bird-analysis-service/internal/config"
	"bird-analysis-service/internal/detector"
	"bird-analysis-service/internal/identity"
	"bird-analysis-service/internal/registry"
	"bird-analysis-service/internal/repository/postgresql"
	"bird-analysis-service/internal/service"
	"bird-analysis-service/internal/transcode"
	httptransport "bird-analysis-service/internal/transport/http"
	"bird-analysis-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(envOr("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg.Addr = envOr("ADDR", cfg.Addr)
	cfg.Workers = envIntOr("WORKERS", cfg.Workers)
	cfg.Detector.URL = envOr("DETECTOR_URL", cfg.Detector.URL)
	cfg.Postgres.DSN = envOr("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Queue.RedisAddr = envOr("REDIS_ADDR", cfg.Queue.RedisAddr)

	outCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.Retention)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	// Postgres record store, optional
	var records *postgresql.RecordRepository
	if cfg.Postgres.DSN != "" {
		pool, err := postgresql.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("pg: %v", err)
		}
		defer pool.Close()
		if err := postgresql.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("pg schema: %v", err)
		}
		records = postgresql.NewRecordRepository(pool)
	}

	// Redis-backed queue when configured, in-memory otherwise
	var queue service.Queue
	if cfg.Queue.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Queue.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		queue = service.NewRedisQueue(rdb, cfg.Queue.QueueKey, cfg.Queue.ProcessingKey)
		startReaper(ctx, queue)
	} else {
		queue = service.NewMemoryQueue(cfg.Queue.Size)
	}

	reg := registry.New()

	processor := worker.NewProcessor(
		reg,
		outCache,
		worker.OpenCV{},
		detector.NewClient(cfg.Detector.URL, cfg.Detector.Timeout),
		transcode.NewFFmpeg(cfg.FFmpeg.Bin),
		recordStore(records),
		cfg.TempDir,
		worker.Limits{
			MaxDuration:   cfg.Limits.MaxDuration,
			MaxWidth:      cfg.Limits.MaxWidth,
			MaxHeight:     cfg.Limits.MaxHeight,
			GapTolerance:  cfg.Analysis.GapTolerance.Seconds(),
			TTLMultiplier: cfg.Analysis.TTLMultiplier,
		},
	)

	pool := worker.NewPool(queue, processor, cfg.Workers)
	go pool.Run(ctx)

	svc := service.New(reg, outCache, queue,
		cfg.TempDir, cfg.Limits.MaxUploadBytes,
		cfg.Analysis.Confidence, cfg.Analysis.Stride,
	)

	h := httptransport.NewHandler(svc, handlerStore(records), cfg.Limits.MaxUploadBytes)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httptransport.Routes(h, identity.Passthrough{}),
	}

	go func() {
		log.Printf("[server] listening addr=%s workers=%d detector=%s", cfg.Addr, cfg.Workers, cfg.Detector.URL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Println("server stopped")
}

// startReaper periodically returns claimed digests to the queue when a
// worker died mid-job.
func startReaper(ctx context.Context, queue service.Queue) {
	type requeuer interface {
		RequeueStale(ctx context.Context, max int64) (int64, error)
	}
	rq, ok := queue.(requeuer)
	if !ok {
		return
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := rq.RequeueStale(ctx, 100)
				if err != nil {
					log.Printf("requeue error: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("requeued %d jobs from processing", n)
				}
			}
		}
	}()
}

// recordStore converts a possibly-nil repository into the worker port.
func recordStore(r *postgresql.RecordRepository) worker.RecordStore {
	if r == nil {
		return nil
	}
	return r
}

func handlerStore(r *postgresql.RecordRepository) httptransport.RecordStore {
	if r == nil {
		return nil
	}
	return r
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
