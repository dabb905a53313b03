// Command orchestrator runs the Orchestrator service (spec §4.1): event
// ingest, routing, the priority queue, subscriber fan-out, the Learning
// Module and the Outcome Watcher. Bootstrap follows cmd/memory/
// cmd/executive's shape, grounded on the teacher's cmd/tarsy/main.go.
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
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/gladys-ai/gladys/pkg/config"
	"github.com/gladys-ai/gladys/pkg/healthz"
	"github.com/gladys-ai/gladys/pkg/learning"
	"github.com/gladys-ai/gladys/pkg/masking"
	"github.com/gladys-ai/gladys/pkg/models"
	"github.com/gladys-ai/gladys/pkg/orchestrator"
	"github.com/gladys-ai/gladys/pkg/outcomewatcher"
	"github.com/gladys-ai/gladys/pkg/rpc"
	"github.com/gladys-ai/gladys/pkg/salience"
	"github.com/gladys-ai/gladys/pkg/telemetry"
	"github.com/gladys-ai/gladys/pkg/version"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// salienceScoreRequest/Response is the JSON-coded wire shape for the
// external salience scorer's one RPC method, mirrored on pkg/llm's
// CompletionRequest/Response pattern (a single unary call, no generated
// client stub needed for a single-method out-of-core adapter).
type salienceScoreRequest struct {
	Text string `json:"text"`
}

type salienceScoreResponse struct {
	Threat      float64            `json:"threat"`
	Salience    float64            `json:"salience"`
	Habituation float64            `json:"habituation"`
	Vector      map[string]float64 `json:"vector,omitempty"`
	ModelID     string             `json:"model_id,omitempty"`
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
	logger.Info("starting gladys-orchestrator", "version", version.Full())

	_, shutdownTracing, err := telemetry.Init("gladys-orchestrator")
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

	execCC, err := rpc.Dial(cfg.ExecutiveAddress)
	if err != nil {
		logger.Error("failed to connect to executive service", "error", err, "address", cfg.ExecutiveAddress)
		os.Exit(1)
	}
	executiveClient := rpc.NewExecutiveClient(execCC)

	salienceProvider := buildSalienceProvider(cfg, logger)

	strategy := learning.NewBayesianStrategy(
		cfg.LearningExplicitMagnitude,
		cfg.LearningImplicitMagnitude,
		time.Duration(cfg.LearningUndoWindowSec)*time.Second,
		cfg.LearningUndoKeywords,
		cfg.LearningIgnoredThreshold,
	)
	learnModule := learning.NewModule(strategy, func(heuristicID string, positive bool, source models.FeedbackSource) error {
		_, err := memoryClient.UpdateHeuristicConfidence(context.Background(), &rpc.UpdateHeuristicConfidenceRequest{
			ID: heuristicID, Positive: positive, FeedbackSource: string(source),
		})
		return err
	})

	patterns, err := outcomewatcher.ParsePatterns(cfg.OutcomePatternsJSON)
	if err != nil {
		logger.Error("failed to parse outcome patterns", "error", err)
		os.Exit(1)
	}

	var watcher *outcomewatcher.Watcher
	if cfg.OutcomeWatcherEnabled {
		watcher = outcomewatcher.New(func(exp models.OutcomeExpectation, positive bool, source models.FeedbackSource) {
			if err := learnModule.OnFeedback(exp.EventID, exp.HeuristicID, positive, source); err != nil {
				logger.Warn("outcome resolution feedback failed", "error", err, "heuristic_id", exp.HeuristicID)
			}
		})
	} else {
		watcher = outcomewatcher.New(func(models.OutcomeExpectation, bool, models.FeedbackSource) {})
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	masker := masking.New(cfg.MaskingEnabled)

	orchCfg := orchestrator.Config{
		EmergencyConfidenceThreshold: cfg.EmergencyConfidenceThreshold,
		EmergencyThreatThreshold:     cfg.EmergencyThreatThreshold,
		HeuristicMinSimilarity:       cfg.HeuristicConfidenceThreshold,
		MaxEvaluationCandidates:      cfg.MaxEvaluationCandidates,
		EventTimeoutMS:               cfg.EventTimeoutMS,
		TimeoutScanInterval:          cfg.TimeoutScanInterval,
		OutcomeCleanupInterval:       cfg.OutcomeCleanupInterval,
		OutcomeTimeoutSec:            cfg.OutcomeTimeoutSec,
		OutcomePatterns:              patterns,
	}
	server := orchestrator.New(orchCfg, memoryClient, executiveClient, salienceProvider, learnModule, watcher, masker, redisClient, logger)
	server.Run(ctx)

	grpcServer := grpc.NewServer()
	rpc.RegisterOrchestratorServer(grpcServer, server)

	listenAddr := getEnv("GRPC_LISTEN_ADDR", getEnv("ORCHESTRATOR_LISTEN_ADDR", ":7000"))
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		logger.Error("failed to listen", "address", listenAddr, "error", err)
		os.Exit(1)
	}

	health := healthz.New(
		[]healthz.CheckFunc{{Name: "process", Run: func() error { return nil }}},
		[]healthz.CheckFunc{
			{Name: "memory_service", Run: func() error {
				_, err := memoryClient.QueryByTime(context.Background(), &rpc.QueryByTimeRequest{Limit: 1})
				return err
			}},
			{Name: "redis", Soft: true, Run: func() error {
				if redisClient == nil {
					return nil
				}
				return redisClient.Ping(context.Background()).Err()
			}},
		},
		nil,
	)
	healthSrv := &http.Server{Addr: ":" + cfg.HealthPort, Handler: health.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", "error", err)
		}
	}()

	go func() {
		logger.Info("orchestrator service listening", "address", listenAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down orchestrator service")
	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = shutdownTracing(shutdownCtx)
}

// buildSalienceProvider dials the external salience scorer when
// SALIENCE_MEMORY_ADDRESS names a real backend, otherwise returns nil so
// salience.Evaluate falls back to neutral defaults (graceful degradation
// per spec §4.1).
func buildSalienceProvider(cfg *config.Config, logger *slog.Logger) salience.Provider {
	if cfg.SalienceMemoryAddress == "" {
		return nil
	}
	cc, err := rpc.Dial(cfg.SalienceMemoryAddress)
	if err != nil {
		logger.Warn("salience scorer unavailable, events will use neutral salience", "error", err)
		return nil
	}
	client := &salience.SalienceClient{
		Invoke: func(ctx context.Context, text string) (*models.Salience, error) {
			req := &salienceScoreRequest{Text: text}
			out := new(salienceScoreResponse)
			if err := cc.Invoke(ctx, "/gladys.salience.Salience/Score", req, out); err != nil {
				return nil, err
			}
			return &models.Salience{
				Threat: out.Threat, Salience: out.Salience, Habituation: out.Habituation,
				Vector: out.Vector, ModelID: out.ModelID,
			}, nil
		},
	}
	return salience.NewGRPCProvider(client)
}
