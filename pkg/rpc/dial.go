package rpc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a client connection using the JSON codec. Mirrors the
// teacher's GRPCLLMClient.NewGRPCLLMClient: grpc.NewClient with insecure
// transport credentials, with an explicit note that this must move to
// TLS before ever crossing an untrusted network boundary.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
}

// WithRetry wraps a transient, idempotent RPC call (salience lookup,
// embedding generation, LLM backend) with bounded exponential backoff,
// per spec §7's "transient transport" taxonomy entry: log and degrade
// rather than fail the caller outright. It is deliberately NOT used
// around the priority queue or heuristic-matching logic, which have
// their own documented fallback semantics.
func WithRetry(ctx context.Context, maxElapsed time.Duration, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	return backoff.Retry(fn, backoff.WithContext(b, ctx))
}
