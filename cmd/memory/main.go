// Command memory runs the Memory Service (spec §4.2): the relational and
// vector-index adapter behind episodic events, heuristics and fires.
// Bootstrap is grounded on the teacher's cmd/tarsy/main.go shape
// (flag-or-env config dir, godotenv, construct-then-serve) adapted from a
// single HTTP binary to a gRPC service with its own health listener.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/gladys-ai/gladys/pkg/config"
	"github.com/gladys-ai/gladys/pkg/embedding"
	"github.com/gladys-ai/gladys/pkg/healthz"
	"github.com/gladys-ai/gladys/pkg/memory"
	"github.com/gladys-ai/gladys/pkg/rpc"
	"github.com/gladys-ai/gladys/pkg/storage"
	"github.com/gladys-ai/gladys/pkg/telemetry"
	"github.com/gladys-ai/gladys/pkg/vectorindex"
	"github.com/gladys-ai/gladys/pkg/version"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// listenAddrFor derives a bind address from a dial target ("host:port" ->
// ":port"), so the service listens on the same port its own address in
// config points other services at.
func listenAddrFor(target string) string {
	if i := strings.LastIndexByte(target, ':'); i >= 0 {
		return target[i:]
	}
	return target
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	if err := godotenv.Load(filepath.Join(*configDir, ".env")); err != nil {
		slog.Warn("no .env file loaded, continuing with process environment", "path", *configDir)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogFormat)
	logger.Info("starting gladys-memory", "version", version.Full())

	_, shutdownTracing, err := telemetry.Init("gladys-memory")
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageClient, err := storage.NewClient(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to storage", "error", err)
		os.Exit(1)
	}
	defer storageClient.Close()
	repo := storage.NewRepository(storageClient)

	embedder := buildEmbedder(cfg, logger)

	var index vectorindex.Index
	if cfg.QdrantDSN != "" {
		index, err = vectorindex.New(cfg.QdrantDSN, cfg.QdrantCollection, cfg.EmbeddingDim, "Cosine")
		if err != nil {
			logger.Warn("vector index unavailable, falling back to in-process cosine scan", "error", err)
			index = nil
		} else {
			defer index.Close()
		}
	}

	service := memory.New(repo, embedder, index, logger)
	go service.RunRetention(ctx, cfg.EventRetentionInterval, time.Duration(cfg.EventRetentionDays)*24*time.Hour)

	grpcServer := grpc.NewServer()
	rpc.RegisterMemoryServer(grpcServer, service)

	listenAddr := getEnv("GRPC_LISTEN_ADDR", listenAddrFor(cfg.MemoryStorageAddress))
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		logger.Error("failed to listen", "address", listenAddr, "error", err)
		os.Exit(1)
	}

	health := healthz.New(
		[]healthz.CheckFunc{{Name: "process", Run: func() error { return nil }}},
		[]healthz.CheckFunc{{Name: "database", Run: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return storageClient.DB().PingContext(pingCtx)
		}}},
		nil,
	)
	healthSrv := &http.Server{Addr: ":" + cfg.HealthPort, Handler: health.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", "error", err)
		}
	}()

	go func() {
		logger.Info("memory service listening", "address", listenAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down memory service")
	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = shutdownTracing(shutdownCtx)
}

// buildEmbedder wires a real embedding backend when one is configured, and
// falls back to the dependency-free deterministic provider otherwise (dev
// and test environments, per pkg/embedding's own doc comment).
func buildEmbedder(cfg *config.Config, logger *slog.Logger) embedding.Provider {
	addr := os.Getenv("EMBEDDING_SERVICE_ADDRESS")
	if addr == "" {
		logger.Warn("EMBEDDING_SERVICE_ADDRESS not set, using deterministic fallback embedder (no semantic signal)")
		return embedding.NewDeterministicProvider(cfg.EmbeddingDim)
	}
	cc, err := rpc.Dial(addr)
	if err != nil {
		logger.Error("failed to connect to embedding service, using deterministic fallback", "error", err)
		return embedding.NewDeterministicProvider(cfg.EmbeddingDim)
	}
	retry := func(ctx context.Context, fn func() error) error {
		return rpc.WithRetry(ctx, 10*time.Second, fn)
	}
	return embedding.NewGRPCProvider(cc, cfg.EmbeddingDim, retry)
}
