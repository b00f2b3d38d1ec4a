// Package answer builds prompts for the fine-tuned question/answer model and
// extracts the answer from its decoded output.
package answer

import "strings"

// DefaultSeparator is the marker the model was fine-tuned to emit between a
// question and its answer.
const DefaultSeparator = "<|sep|>"

// BuildPrompt appends the separator marker to the question.
func BuildPrompt(question, sep string) string {
	return question + " " + sep
}

// Extract returns the text after the last occurrence of sep, trimmed of
// surrounding whitespace. When sep does not occur, decoded is returned as is.
func Extract(decoded, sep string) string {
	if sep == "" {
		return decoded
	}
	i := strings.LastIndex(decoded, sep)
	if i < 0 {
		return decoded
	}
	return strings.TrimSpace(decoded[i+len(sep):])
}
