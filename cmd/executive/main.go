// Command executive runs the Executive Service (spec §4.3): suggestion
// fast-path vs. LLM-path response generation, reasoning-trace bookkeeping,
// and feedback-driven heuristic creation. Bootstrap follows the same
// shape as cmd/memory, grounded on the teacher's cmd/tarsy/main.go.
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
	"github.com/gladys-ai/gladys/pkg/executive"
	"github.com/gladys-ai/gladys/pkg/healthz"
	"github.com/gladys-ai/gladys/pkg/llm"
	"github.com/gladys-ai/gladys/pkg/rpc"
	"github.com/gladys-ai/gladys/pkg/telemetry"
	"github.com/gladys-ai/gladys/pkg/version"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

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
	logger.Info("starting gladys-executive", "version", version.Full())

	_, shutdownTracing, err := telemetry.Init("gladys-executive")
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memCC, err := rpc.Dial(cfg.MemoryStorageAddress)
	if err != nil {
		logger.Error("failed to connect to memory service", "error", err, "address", cfg.MemoryStorageAddress)
		os.Exit(1)
	}
	memoryClient := rpc.NewMemoryClient(memCC)

	var llmClient *llm.Client
	if addr := os.Getenv("LLM_SERVICE_ADDRESS"); addr != "" {
		llmClient, err = llm.NewClient(addr, logger)
		if err != nil {
			logger.Warn("llm backend unavailable, executive will fall back to no-executive responses", "error", err)
			llmClient = nil
		} else {
			defer llmClient.Close()
		}
	} else {
		logger.Warn("LLM_SERVICE_ADDRESS not set, executive runs without an LLM decision path")
	}

	execCfg := executive.Config{
		HeuristicConfidenceThreshold: cfg.HeuristicConfidenceThreshold,
		TraceTTL:                     5 * time.Minute,
		MinResponseWords:             10,
		MaxResponseWords:             50,
		DedupSimilarity:              0.9,
	}
	service := executive.New(execCfg, llmClient, memoryClient, logger)

	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stopCleanup:
				return
			case <-ticker.C:
				service.CleanupExpired()
			}
		}
	}()

	grpcServer := grpc.NewServer()
	rpc.RegisterExecutiveServer(grpcServer, service)

	listenAddr := getEnv("GRPC_LISTEN_ADDR", listenAddrFor(cfg.ExecutiveAddress))
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		logger.Error("failed to listen", "address", listenAddr, "error", err)
		os.Exit(1)
	}

	health := healthz.New(
		[]healthz.CheckFunc{{Name: "process", Run: func() error { return nil }}},
		[]healthz.CheckFunc{{Name: "llm_backend", Soft: true, Run: func() error {
			if llmClient == nil {
				return errors.New("no llm backend configured")
			}
			return nil
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
		logger.Info("executive service listening", "address", listenAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down executive service")
	close(stopCleanup)
	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = shutdownTracing(shutdownCtx)
}
