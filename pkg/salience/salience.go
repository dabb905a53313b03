// Package salience adapts the external salience scorer behind a small
// interface, following spec §4.1's graceful-degradation rule: on
// failure, return neutral defaults so events keep flowing.
package salience

import (
	"context"
	"log/slog"

	"github.com/gladys-ai/gladys/pkg/models"
)

// Provider scores an event's salience.
type Provider interface {
	Score(ctx context.Context, sourceText string) (*models.Salience, error)
}

// Evaluate implements spec §4.1's "Salience evaluation": use the
// event's explicit salience verbatim if present, otherwise query the
// provider, falling back to neutral defaults on any failure.
func Evaluate(ctx context.Context, logger *slog.Logger, provider Provider, event models.Event) *models.Salience {
	if event.Salience != nil {
		return event.Salience
	}
	if provider == nil {
		return models.NeutralSalience()
	}
	s, err := provider.Score(ctx, event.RawText)
	if err != nil {
		logger.Warn("salience provider unavailable, using neutral defaults",
			"error", err, "event_id", event.ID)
		return models.NeutralSalience()
	}
	return s
}

// GRPCProvider is grounded on the same out-of-process-adapter shape as
// pkg/embedding.GRPCProvider: a thin wrapper over a dedicated RPC client
// pointed at SALIENCE_MEMORY_ADDRESS.
type GRPCProvider struct {
	client *SalienceClient
}

// SalienceClient is a minimal hand-rolled client over the shared JSON
// codec (pkg/rpc), scoped to the one method this adapter needs; the
// salience scorer is external to the core per spec §1 and does not need
// a full grpc.ServiceDesc of its own in this module.
type SalienceClient struct {
	Invoke func(ctx context.Context, text string) (*models.Salience, error)
}

func NewGRPCProvider(client *SalienceClient) *GRPCProvider {
	return &GRPCProvider{client: client}
}

func (p *GRPCProvider) Score(ctx context.Context, text string) (*models.Salience, error) {
	return p.client.Invoke(ctx, text)
}
