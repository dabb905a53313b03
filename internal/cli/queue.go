package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gladys-ai/gladys/pkg/rpc"
)

// orchestratorAddr resolves where the Orchestrator's gRPC surface lives,
// matching the :7000 default cmd/orchestrator listens on unless
// ORCHESTRATOR_LISTEN_ADDR/GRPC_LISTEN_ADDR moved it.
func orchestratorAddr() string {
	return getEnv("ORCHESTRATOR_ADDRESS", "localhost:7000")
}

func dialOrchestrator() (*rpc.OrchestratorClient, func() error, error) {
	cc, err := rpc.Dial(orchestratorAddr())
	if err != nil {
		return nil, nil, fmt.Errorf("queue: connect to orchestrator: %w", err)
	}
	return rpc.NewOrchestratorClient(cc), cc.Close, nil
}

// Queue dispatches `queue stats|list|watch` (spec §6) against the live
// Orchestrator's in-memory priority queue.
func Queue(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("queue: expected a subcommand (stats|list|watch)")
	}
	switch args[0] {
	case "stats":
		return queueStats()
	case "list":
		return queueList(args[1:])
	case "watch":
		return queueWatch()
	default:
		return fmt.Errorf("queue: unknown subcommand %q", args[0])
	}
}

func queueStats() error {
	client, closeFn, err := dialOrchestrator()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := client.GetQueueStats(ctx, &rpc.Empty{})
	if err != nil {
		return fmt.Errorf("queue stats: %w", err)
	}
	printQueueStats(stats)
	return nil
}

func queueList(args []string) error {
	limit := 20
	if len(args) > 0 {
		fmt.Sscanf(args[0], "%d", &limit)
	}
	client, closeFn, err := dialOrchestrator()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.ListQueuedEvents(ctx, &rpc.ListQueuedEventsRequest{Limit: limit})
	if err != nil {
		return fmt.Errorf("queue list: %w", err)
	}
	for _, e := range resp.Events {
		fmt.Printf("%-36s source=%-10s salience=%.3f enqueued=%s\n", e.EventID, e.Source, e.SalienceScore, e.EnqueuedAt)
	}
	fmt.Printf("(%d events)\n", len(resp.Events))
	return nil
}

// queueWatch polls GetQueueStats every second until interrupted, the
// teacher-repo's CLIs having no streaming-stats RPC to subscribe to
// instead. Returns cleanly on SIGINT/SIGTERM so main can map that to
// exit code 130.
func queueWatch() error {
	client, closeFn, err := dialOrchestrator()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		stats, err := client.GetQueueStats(reqCtx, &rpc.Empty{})
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("queue watch: %w", err)
		}
		printQueueStats(stats)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func printQueueStats(s *rpc.QueueStats) {
	fmt.Printf("queue_size=%d total_queued=%d total_processed=%d total_timed_out=%d\n",
		s.QueueSize, s.TotalQueued, s.TotalProcessed, s.TotalTimedOut)
}
