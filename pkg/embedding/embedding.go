// Package embedding adapts the external embedding model (out of scope
// per spec §1: "the embedding model itself") into a fixed-dim float
// vector provider, grounded on the teacher's GRPCLLMClient pattern
// (pkg/agent/llm_grpc.go) of wrapping one external RPC backend behind a
// small interface with a real grpc.ClientConn underneath.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc"

	"github.com/gladys-ai/gladys/pkg/rpc"
)

// Provider turns text into a fixed-dim embedding vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// GRPCProvider calls an external embedding service over the same JSON-
// coded grpc transport the rest of GLADyS uses, reusing Memory's
// GenerateEmbedding RPC shape so the embedding backend can itself be a
// GLADyS Memory instance acting as a provider for another.
type GRPCProvider struct {
	client *rpc.MemoryClient
	dim    int
	call   rpcCaller
}

type rpcCaller func(ctx context.Context, fn func() error) error

func NewGRPCProvider(cc *grpc.ClientConn, dim int, retry rpcCaller) *GRPCProvider {
	if retry == nil {
		retry = func(ctx context.Context, fn func() error) error { return fn() }
	}
	return &GRPCProvider{client: rpc.NewMemoryClient(cc), dim: dim, call: retry}
}

func (p *GRPCProvider) Dimension() int { return p.dim }

func (p *GRPCProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := p.call(ctx, func() error {
		resp, err := p.client.GenerateEmbedding(ctx, &rpc.GenerateEmbeddingRequest{Text: text})
		if err != nil {
			return fmt.Errorf("embedding: generate: %w", err)
		}
		out = resp.Embedding
		return nil
	})
	return out, err
}

// DeterministicProvider is a dependency-free fallback embedding used in
// tests and local development: a SHA-256-seeded pseudo-random unit
// vector. Same text always maps to the same vector, so similarity
// comparisons over it are stable, but it carries no semantic signal —
// never use it outside tests/dev.
type DeterministicProvider struct {
	dim int
}

func NewDeterministicProvider(dim int) *DeterministicProvider {
	return &DeterministicProvider{dim: dim}
}

func (d *DeterministicProvider) Dimension() int { return d.dim }

func (d *DeterministicProvider) Embed(_ context.Context, text string) ([]float32, error) {
	seed := sha256.Sum256([]byte(text))
	v := make([]float32, d.dim)
	state := binary.BigEndian.Uint64(seed[:8])
	var norm float64
	for i := range v {
		state = state*6364136223846793005 + 1442695040888963407
		f := float64(state>>11) / float64(1<<53)
		v[i] = float32(f*2 - 1)
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v, nil
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v, nil
}

// WithTimeout bounds a single embed call, matching spec §5's "any RPC
// call is a suspension point" discipline.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
