// Package llm wraps the external text-generation backend Executive calls
// for its LLM decision path (spec §4.3). Grounded on the teacher's
// LLMClient (pkg/agent/llm_client.go): a gRPC connection plus an
// env-configured model/temperature/max-tokens triple. Adapted from the
// teacher's protobuf streaming transport (pb.LLMServiceClient,
// GenerateWithThinking) to the module's own JSON-coded unary RPC (see
// pkg/rpc/codec.go) since Executive needs one completion per event, not a
// token stream.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"google.golang.org/grpc"

	"github.com/gladys-ai/gladys/pkg/rpc"
)

const llmServiceName = "gladys.llm.LLM"

// CompletionRequest is one non-streaming generation call.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int32   `json:"max_tokens,omitempty"`
}

type CompletionResponse struct {
	Text string `json:"text"`
}

// Client wraps the gRPC connection to the external LLM backend.
type Client struct {
	cc          *grpc.ClientConn
	model       string
	temperature float32
	maxTokens   int32
	logger      *slog.Logger
}

// NewClient dials addr and configures the model/temperature/max-tokens
// triple from the environment, the same GEMINI_* variables the teacher
// reads.
func NewClient(addr string, logger *slog.Logger) (*Client, error) {
	cc, err := rpc.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("llm: failed to connect to LLM service: %w", err)
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash-thinking-exp-01-21"
	}
	var temperature float32
	if v := os.Getenv("GEMINI_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			temperature = float32(f)
		}
	}
	var maxTokens int32
	if v := os.Getenv("GEMINI_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			maxTokens = int32(n)
		}
	}

	logger.Info("llm client configured", "model", model)
	return &Client{cc: cc, model: model, temperature: temperature, maxTokens: maxTokens, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// Complete sends a single prompt and returns the full response text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := &CompletionRequest{Prompt: prompt, Model: c.model, Temperature: c.temperature, MaxTokens: c.maxTokens}
	out := new(CompletionResponse)
	if err := c.cc.Invoke(ctx, "/"+llmServiceName+"/Complete", req, out); err != nil {
		return "", fmt.Errorf("llm: complete: %w", err)
	}
	return out.Text, nil
}
