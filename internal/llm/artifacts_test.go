package llm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadArtifactsDefaults(t *testing.T) {
	dir := writeModelDir(t, nil)

	a, err := LoadArtifacts(dir)
	if err != nil {
		t.Fatal(err)
	}
	if a.ModelType != "gpt2" {
		t.Errorf("ModelType = %q", a.ModelType)
	}
	if a.MaxPositions != 1024 {
		t.Errorf("MaxPositions = %d", a.MaxPositions)
	}
	if a.EOSToken != "<|endoftext|>" {
		t.Errorf("EOSToken = %q", a.EOSToken)
	}
	if !a.IsSpecial("<|endoftext|>") {
		t.Error("eos token should be special")
	}
	if a.IsSpecial("<|sep|>") {
		t.Error("separator should not be special without tokenizer files saying so")
	}
}

func TestLoadArtifactsSpecialTokens(t *testing.T) {
	dir := writeModelDir(t, map[string]string{
		"special_tokens_map.json": `{
			"bos_token": "<|endoftext|>",
			"eos_token": {"content": "<|endoftext|>", "lstrip": false},
			"additional_special_tokens": ["<|sep|>"]
		}`,
		"tokenizer_config.json": `{
			"added_tokens_decoder": {
				"50257": {"content": "<|pad|>", "special": true},
				"50258": {"content": "<|plain|>", "special": false}
			}
		}`,
		"generation_config.json": `{"max_new_tokens": 64}`,
	})

	a, err := LoadArtifacts(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range []string{"<|endoftext|>", "<|sep|>", "<|pad|>"} {
		if !a.IsSpecial(tok) {
			t.Errorf("%s should be special", tok)
		}
	}
	if a.IsSpecial("<|plain|>") {
		t.Error("non-special added token marked special")
	}
	if a.MaxNewTokens != 64 {
		t.Errorf("MaxNewTokens = %d, want 64", a.MaxNewTokens)
	}
	if len(a.TokenizerFiles) != 2 {
		t.Errorf("TokenizerFiles = %v", a.TokenizerFiles)
	}
}

func TestLoadArtifactsErrors(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		if _, err := LoadArtifacts(filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("missing config", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "vocab.json"), []byte(`{}`), 0644)
		if _, err := LoadArtifacts(dir); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("no tokenizer", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"model_type":"gpt2"}`), 0644)
		_, err := LoadArtifacts(dir)
		if !errors.Is(err, ErrNoTokenizer) {
			t.Errorf("err = %v, want ErrNoTokenizer", err)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		dir := writeModelDir(t, map[string]string{"special_tokens_map.json": `{`})
		if _, err := LoadArtifacts(dir); err == nil {
			t.Error("expected error")
		}
	})
}

func TestTokenBudget(t *testing.T) {
	a := &Artifacts{MaxPositions: 1024, MaxNewTokens: 64}

	tests := []struct {
		name       string
		configured int
		explicit   bool
		want       int
		wantErr    bool
	}{
		{"generation config wins over default", 50, false, 64, false},
		{"explicit setting wins", 12, true, 12, false},
		{"budget fills context", 1024, true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.TokenBudget(tt.configured, tt.explicit)
			if tt.wantErr {
				if !errors.Is(err, ErrContextLengthExceeded) {
					t.Errorf("err = %v, want ErrContextLengthExceeded", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("TokenBudget = %d, want %d", got, tt.want)
			}
		})
	}

	plain := &Artifacts{}
	if got, err := plain.TokenBudget(50, false); err != nil || got != 50 {
		t.Errorf("TokenBudget without model hints = %d, %v", got, err)
	}
}
