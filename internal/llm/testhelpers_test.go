package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
)

// writeModelDir creates a minimal distilgpt2-style model directory.
func writeModelDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	base := map[string]string{
		"config.json": `{"model_type":"gpt2","eos_token_id":50256,"n_positions":1024}`,
		"vocab.json":  `{}`,
	}
	for name, content := range files {
		base[name] = content
	}
	for name, content := range base {
		if content == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// stubRuntime returns fixed completions and records requests.
type stubRuntime struct {
	models   []string
	text     string
	usage    openai.Usage
	err      error
	requests []openai.CompletionRequest
}

func (s *stubRuntime) CreateCompletion(_ context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.CompletionResponse{}, s.err
	}
	return openai.CompletionResponse{
		Choices: []openai.CompletionChoice{{Text: s.text, FinishReason: "stop"}},
		Usage:   &s.usage,
	}, nil
}

func (s *stubRuntime) ListModels(_ context.Context) (openai.ModelsList, error) {
	var list openai.ModelsList
	for _, id := range s.models {
		list.Models = append(list.Models, openai.Model{ID: id})
	}
	return list, nil
}
