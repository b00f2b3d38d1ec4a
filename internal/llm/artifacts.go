package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoTokenizer is returned when a model directory carries no tokenizer files.
var ErrNoTokenizer = errors.New("no tokenizer files in model directory")

// ErrContextLengthExceeded is returned when a prompt plus its new tokens does
// not fit the model's position embeddings.
var ErrContextLengthExceeded = errors.New("sequence longer than model context")

const defaultEOSToken = "<|endoftext|>"

var tokenizerFiles = []string{"tokenizer.json", "vocab.json", "merges.txt", "tokenizer_config.json"}

// Artifacts is the read-only description of a fine-tuned model directory.
type Artifacts struct {
	Dir            string
	ModelType      string
	EOSToken       string
	MaxPositions   int // 0 when config.json does not say
	MaxNewTokens   int // from generation_config.json, 0 when absent
	TokenizerFiles []string

	special map[string]struct{}
}

// IsSpecial reports whether tok is dropped when decoding with special tokens skipped.
func (a *Artifacts) IsSpecial(tok string) bool {
	_, ok := a.special[tok]
	return ok
}

// SpecialTokens returns the special token strings in a stable order.
func (a *Artifacts) SpecialTokens() []string {
	out := make([]string, 0, len(a.special))
	for tok := range a.special {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

type modelConfigFile struct {
	ModelType             string `json:"model_type"`
	NPositions            int    `json:"n_positions"`
	MaxPositionEmbeddings int    `json:"max_position_embeddings"`
}

type generationConfigFile struct {
	MaxNewTokens int `json:"max_new_tokens"`
}

// tokenField accepts both "<|endoftext|>" and {"content": "<|endoftext|>", ...}.
type tokenField string

func (t *tokenField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = tokenField(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*t = tokenField(obj.Content)
	return nil
}

type specialTokensFile struct {
	BOSToken                tokenField   `json:"bos_token"`
	EOSToken                tokenField   `json:"eos_token"`
	UNKToken                tokenField   `json:"unk_token"`
	PADToken                tokenField   `json:"pad_token"`
	SEPToken                tokenField   `json:"sep_token"`
	AdditionalSpecialTokens []tokenField `json:"additional_special_tokens"`
}

type tokenizerConfigFile struct {
	specialTokensFile
	AddedTokensDecoder map[string]struct {
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens_decoder"`
}

// LoadArtifacts reads and validates the model directory. Weights are not
// parsed here; they belong to the runtime that serves the same directory.
func LoadArtifacts(dir string) (*Artifacts, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model path %s is not a directory", dir)
	}

	var mc modelConfigFile
	if err := readJSON(filepath.Join(dir, "config.json"), &mc); err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}

	a := &Artifacts{
		Dir:          dir,
		ModelType:    mc.ModelType,
		MaxPositions: mc.NPositions,
		special:      make(map[string]struct{}),
	}
	if a.MaxPositions == 0 {
		a.MaxPositions = mc.MaxPositionEmbeddings
	}

	for _, name := range tokenizerFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			a.TokenizerFiles = append(a.TokenizerFiles, name)
		}
	}
	if len(a.TokenizerFiles) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoTokenizer)
	}

	var stm specialTokensFile
	if err := readOptionalJSON(filepath.Join(dir, "special_tokens_map.json"), &stm); err != nil {
		return nil, fmt.Errorf("failed to read special tokens map: %w", err)
	}
	a.addSpecial(stm)

	var tc tokenizerConfigFile
	if err := readOptionalJSON(filepath.Join(dir, "tokenizer_config.json"), &tc); err != nil {
		return nil, fmt.Errorf("failed to read tokenizer config: %w", err)
	}
	a.addSpecial(tc.specialTokensFile)
	for _, added := range tc.AddedTokensDecoder {
		if added.Special && added.Content != "" {
			a.special[added.Content] = struct{}{}
		}
	}

	switch {
	case stm.EOSToken != "":
		a.EOSToken = string(stm.EOSToken)
	case tc.EOSToken != "":
		a.EOSToken = string(tc.EOSToken)
	default:
		a.EOSToken = defaultEOSToken
	}
	// Padding reuses the end-of-sequence token.
	a.special[a.EOSToken] = struct{}{}

	var gc generationConfigFile
	if err := readOptionalJSON(filepath.Join(dir, "generation_config.json"), &gc); err != nil {
		return nil, fmt.Errorf("failed to read generation config: %w", err)
	}
	a.MaxNewTokens = gc.MaxNewTokens

	return a, nil
}

// TokenBudget picks the new-token budget: the configured value when explicit,
// else generation_config.json's max_new_tokens, else the configured default.
// A budget that leaves no room for a prompt is rejected.
func (a *Artifacts) TokenBudget(configured int, explicit bool) (int, error) {
	budget := configured
	if !explicit && a.MaxNewTokens > 0 {
		budget = a.MaxNewTokens
	}
	if a.MaxPositions > 0 && budget >= a.MaxPositions {
		return 0, fmt.Errorf("%w: %d new tokens with %d positions", ErrContextLengthExceeded, budget, a.MaxPositions)
	}
	return budget, nil
}

func (a *Artifacts) addSpecial(f specialTokensFile) {
	for _, tok := range []tokenField{f.BOSToken, f.EOSToken, f.UNKToken, f.PADToken, f.SEPToken} {
		if tok != "" {
			a.special[string(tok)] = struct{}{}
		}
	}
	for _, tok := range f.AdditionalSpecialTokens {
		if tok != "" {
			a.special[string(tok)] = struct{}{}
		}
	}
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func readOptionalJSON(path string, v interface{}) error {
	err := readJSON(path, v)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
