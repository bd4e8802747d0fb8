package ai

import (
	"encoding/json"
	"fmt"

	"github.com/v0xg/pickmode/internal/style"
)

const systemPrompt = `You are a front-end engineer reviewing elements a user picked on a web page.

You will receive:
1. A JSON array of element snapshots. Each has a tag name, a CSS selector, the viewport rect, computed and inline styles, the box model (content, padding, border, margin), positioning and visibility.
2. Optionally, a question from the user about those elements.

Output a JSON object:
{
  "summary": "one paragraph about the selection as a whole, answering the question if there is one",
  "elements": [
    {"selector": "<selector from the snapshot>", "description": "what the element looks like and how it is laid out"}
  ]
}

Guidelines:
- Use only selectors from the snapshots, in the same order
- Mention colors as hex, sizes in px
- Point out elements that are hidden, transparent or clipped
- Keep each description under 60 words

Respond ONLY with the JSON object, no explanation or markdown.`

const defaultQuestion = "Describe how these elements look and how they are laid out."

// maxSnapshots bounds the prompt size.
const maxSnapshots = 20

func buildUserPrompt(snaps []style.Snapshot, question string) (string, error) {
	if len(snaps) == 0 {
		return "", fmt.Errorf("ai: no elements selected")
	}
	if len(snaps) > maxSnapshots {
		snaps = snaps[:maxSnapshots]
	}
	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ai: marshal snapshots: %w", err)
	}
	if question == "" {
		question = defaultQuestion
	}
	return "Selected elements:\n" + string(data) + "\n\nQuestion: " + question, nil
}
