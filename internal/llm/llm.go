// Package llm owns the once-loaded causal language model handle. Artifacts
// are read from a local model directory at startup; token generation runs on
// an OpenAI-compatible runtime (llama.cpp server, vLLM) serving that directory.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrTokenBudgetExceeded is returned when the runtime reports more new tokens
// than were requested.
var ErrTokenBudgetExceeded = errors.New("runtime exceeded max new tokens")

// The completions API drops a zero temperature, so greedy decoding is
// requested with the smallest temperature runtimes accept.
const greedyTemperature = 1e-6

// Config holds the configuration for the model handle
type Config struct {
	ModelDir   string
	ModelName  string // name the runtime serves the model under
	RuntimeURL string
	APIKey     string
}

// Runtime is the subset of the OpenAI client the model needs.
type Runtime interface {
	CreateCompletion(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// Generation is one decoded model output.
type Generation struct {
	Prompt       string
	Decoded      string
	TokensIn     int
	TokensOut    int
	FinishReason string
}

// Model is read-only after Load and safe for concurrent use.
type Model struct {
	config    Config
	artifacts *Artifacts
	runtime   Runtime
}

// Load reads the model artifacts and connects to the runtime.
func Load(ctx context.Context, cfg Config) (*Model, error) {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	oaiCfg.BaseURL = cfg.RuntimeURL
	return LoadWithRuntime(ctx, cfg, openai.NewClientWithConfig(oaiCfg))
}

// LoadWithRuntime is Load with a caller-supplied runtime.
func LoadWithRuntime(ctx context.Context, cfg Config, rt Runtime) (*Model, error) {
	slog.Info("Loading model artifacts", "dir", cfg.ModelDir, "runtime", cfg.RuntimeURL)

	artifacts, err := LoadArtifacts(cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	m := &Model{
		config:    cfg,
		artifacts: artifacts,
		runtime:   rt,
	}
	if err := m.warmup(ctx); err != nil {
		return nil, err
	}

	slog.Info("Model loaded successfully",
		"model_name", cfg.ModelName,
		"model_type", artifacts.ModelType,
		"eos_token", artifacts.EOSToken,
		"tokenizer_files", artifacts.TokenizerFiles,
		"special_tokens", len(artifacts.special))
	return m, nil
}

func (m *Model) warmup(ctx context.Context) error {
	list, err := m.runtime.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach model runtime: %w", err)
	}
	if len(list.Models) == 0 {
		return nil
	}
	served := make([]string, 0, len(list.Models))
	for _, sm := range list.Models {
		if sm.ID == m.config.ModelName {
			return nil
		}
		served = append(served, sm.ID)
	}
	return fmt.Errorf("model %q is not served by runtime (served: %s)", m.config.ModelName, strings.Join(served, ", "))
}

// Generate runs greedy generation of at most maxNewTokens tokens and returns
// the decoded sequence (prompt included) with special tokens removed.
func (m *Model) Generate(ctx context.Context, prompt string, maxNewTokens int) (*Generation, error) {
	if maxNewTokens <= 0 {
		return nil, fmt.Errorf("max new tokens must be positive, got %d", maxNewTokens)
	}

	resp, err := m.runtime.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       m.config.ModelName,
		Prompt:      prompt,
		MaxTokens:   maxNewTokens,
		Temperature: greedyTemperature,
		N:           1,
		Stop:        []string{m.artifacts.EOSToken},
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("runtime returned no choices")
	}
	if resp.Usage.CompletionTokens > maxNewTokens {
		return nil, fmt.Errorf("%w: %d > %d", ErrTokenBudgetExceeded, resp.Usage.CompletionTokens, maxNewTokens)
	}
	if n := resp.Usage.PromptTokens + resp.Usage.CompletionTokens; m.artifacts.MaxPositions > 0 && n > m.artifacts.MaxPositions {
		return nil, fmt.Errorf("%w: %d > %d", ErrContextLengthExceeded, n, m.artifacts.MaxPositions)
	}

	choice := resp.Choices[0]
	return &Generation{
		Prompt:       prompt,
		Decoded:      m.Decode(prompt + choice.Text),
		TokensIn:     resp.Usage.PromptTokens,
		TokensOut:    resp.Usage.CompletionTokens,
		FinishReason: choice.FinishReason,
	}, nil
}

// Decode removes special tokens from text.
func (m *Model) Decode(text string) string {
	for _, tok := range m.artifacts.SpecialTokens() {
		text = strings.ReplaceAll(text, tok, "")
	}
	return text
}

// Artifacts returns the loaded artifact description.
func (m *Model) Artifacts() *Artifacts {
	return m.artifacts
}

// Name returns the served model name.
func (m *Model) Name() string {
	return m.config.ModelName
}
