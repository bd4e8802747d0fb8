// Package ai asks a language model to describe the picked elements from
// their style snapshots.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/v0xg/pickmode/internal/style"
)

// Description is the model's answer.
type Description struct {
	Summary  string        `json:"summary"`
	Elements []ElementNote `json:"elements"`
}

// ElementNote describes one selected element.
type ElementNote struct {
	Selector    string `json:"selector"`
	Description string `json:"description"`
}

// Describer defines the interface for describing a selection.
type Describer interface {
	Describe(ctx context.Context, snaps []style.Snapshot, question string) (*Description, error)
}

// NewDescriber creates a describer from a provider name, reading the API
// key from the environment.
func NewDescriber(name, model string) (Describer, error) {
	switch name {
	case "claude", "anthropic":
		key := envKey("PICKMODE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ai: PICKMODE_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")
		}
		return NewClaude(key, model), nil
	case "openai", "gpt":
		key := envKey("PICKMODE_OPENAI_KEY", "OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ai: PICKMODE_OPENAI_KEY or OPENAI_API_KEY environment variable required")
		}
		return NewOpenAI(key, model), nil
	default:
		return nil, fmt.Errorf("ai: unknown provider: %s (supported: claude, openai)", name)
	}
}

func envKey(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// parseDescription extracts and parses a JSON object from a response
// that may contain surrounding text or a code fence.
func parseDescription(response string) (*Description, error) {
	var d Description
	if err := json.Unmarshal([]byte(response), &d); err == nil {
		return &d, nil
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	// Find the matching closing brace, skipping string contents.
	depth, end := 0, -1
	inString, escaped := false, false
	for i := start; i < len(response) && end == -1; i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
	}
	if end == -1 {
		return nil, fmt.Errorf("no matching closing brace found")
	}

	if err := json.Unmarshal([]byte(response[start:end]), &d); err != nil {
		return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return &d, nil
}
