package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/numislab/coincataloger/internal/models"
)

// ErrUnparseable is returned when a reply cannot be decoded into fields.
var ErrUnparseable = errors.New("unparseable recognition reply")

const fence = "```"

// StripFence trims the reply and, when it opens with a code fence and has
// more than two lines, drops its first and last line. Shorter fenced text is
// returned trimmed but otherwise unchanged.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, fence) {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) <= 2 {
		return text
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

// Parse decodes a recognition reply into the recognized fields. Values are
// not validated.
func Parse(raw string) (models.Fields, error) {
	var fields models.Fields

	body := strings.TrimSpace(StripFence(raw))
	if !strings.HasPrefix(body, "{") {
		return fields, fmt.Errorf("%w: expected a JSON object (reply snippet: %s)", ErrUnparseable, snippet(body))
	}

	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return models.Fields{}, fmt.Errorf("%w: %w (reply snippet: %s)", ErrUnparseable, err, snippet(body))
	}

	return fields, nil
}

func snippet(s string) string {
	const max = 80
	if len(s) <= max {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%q...", s[:max])
}
