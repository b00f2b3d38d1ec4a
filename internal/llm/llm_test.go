package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestGenerateDecodesPromptAndCompletion(t *testing.T) {
	rt := &stubRuntime{
		models: []string{"distilgpt2-finetuned"},
		text:   " 2 + 2 = 4<|endoftext|>",
		usage:  openai.Usage{PromptTokens: 9, CompletionTokens: 8},
	}
	m, err := LoadWithRuntime(context.Background(), Config{
		ModelDir:  writeModelDir(t, nil),
		ModelName: "distilgpt2-finetuned",
	}, rt)
	if err != nil {
		t.Fatal(err)
	}

	gen, err := m.Generate(context.Background(), "What is 2 + 2? <|sep|>", 50)
	if err != nil {
		t.Fatal(err)
	}
	if gen.Decoded != "What is 2 + 2? <|sep|> 2 + 2 = 4" {
		t.Errorf("Decoded = %q", gen.Decoded)
	}
	if gen.TokensIn != 9 || gen.TokensOut != 8 {
		t.Errorf("tokens = %d/%d", gen.TokensIn, gen.TokensOut)
	}

	req := rt.requests[0]
	if req.MaxTokens != 50 {
		t.Errorf("MaxTokens = %d, want 50", req.MaxTokens)
	}
	if len(req.Stop) != 1 || req.Stop[0] != "<|endoftext|>" {
		t.Errorf("Stop = %v", req.Stop)
	}
	if req.Prompt != "What is 2 + 2? <|sep|>" {
		t.Errorf("Prompt = %v", req.Prompt)
	}
}

func TestGenerateStripsSpecialSeparator(t *testing.T) {
	rt := &stubRuntime{text: " four", usage: openai.Usage{CompletionTokens: 1}}
	m, err := LoadWithRuntime(context.Background(), Config{
		ModelDir: writeModelDir(t, map[string]string{
			"special_tokens_map.json": `{"additional_special_tokens": ["<|sep|>"]}`,
		}),
	}, rt)
	if err != nil {
		t.Fatal(err)
	}

	gen, err := m.Generate(context.Background(), "Q <|sep|>", 5)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(gen.Decoded, "<|sep|>") {
		t.Errorf("special separator should be stripped, got %q", gen.Decoded)
	}
}

func TestGenerateTokenBudget(t *testing.T) {
	rt := &stubRuntime{text: "a b c", usage: openai.Usage{CompletionTokens: 7}}
	m, err := LoadWithRuntime(context.Background(), Config{ModelDir: writeModelDir(t, nil)}, rt)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Generate(context.Background(), "Q", 5); !errors.Is(err, ErrTokenBudgetExceeded) {
		t.Errorf("err = %v, want ErrTokenBudgetExceeded", err)
	}
	if _, err := m.Generate(context.Background(), "Q", 0); err == nil {
		t.Error("expected error for zero budget")
	}
}

func TestGenerateContextLength(t *testing.T) {
	rt := &stubRuntime{text: " four", usage: openai.Usage{PromptTokens: 1020, CompletionTokens: 5}}
	m, err := LoadWithRuntime(context.Background(), Config{ModelDir: writeModelDir(t, nil)}, rt)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Generate(context.Background(), "Q", 50); !errors.Is(err, ErrContextLengthExceeded) {
		t.Errorf("err = %v, want ErrContextLengthExceeded", err)
	}
}

func TestGenerateRuntimeError(t *testing.T) {
	rt := &stubRuntime{err: errors.New("connection refused")}
	m, err := LoadWithRuntime(context.Background(), Config{ModelDir: writeModelDir(t, nil)}, rt)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Generate(context.Background(), "Q", 5); err == nil {
		t.Error("expected error")
	}
}

func TestLoadRejectsUnservedModel(t *testing.T) {
	rt := &stubRuntime{models: []string{"other-model"}}
	_, err := LoadWithRuntime(context.Background(), Config{
		ModelDir:  writeModelDir(t, nil),
		ModelName: "distilgpt2-finetuned",
	}, rt)
	if err == nil || !strings.Contains(err.Error(), "other-model") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadAgainstOpenAICompatibleServer(t *testing.T) {
	var gotMaxTokens float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"distilgpt2-finetuned","object":"model"}]}`))
		case "/v1/completions":
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotMaxTokens, _ = body["max_tokens"].(float64)
			_, _ = w.Write([]byte(`{"id":"cmpl-1","object":"text_completion","choices":[{"text":" 4","index":0,"finish_reason":"stop"}],"usage":{"prompt_tokens":6,"completion_tokens":1,"total_tokens":7}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m, err := Load(context.Background(), Config{
		ModelDir:   writeModelDir(t, nil),
		ModelName:  "distilgpt2-finetuned",
		RuntimeURL: srv.URL + "/v1",
		APIKey:     "not-needed",
	})
	if err != nil {
		t.Fatal(err)
	}

	gen, err := m.Generate(context.Background(), "2+2? <|sep|>", 50)
	if err != nil {
		t.Fatal(err)
	}
	if gen.Decoded != "2+2? <|sep|> 4" {
		t.Errorf("Decoded = %q", gen.Decoded)
	}
	if gotMaxTokens != 50 {
		t.Errorf("max_tokens sent = %v, want 50", gotMaxTokens)
	}
}
