package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadUpstreamJSON marks a reply the reasoning service was asked to format
// as JSON but didn't. Callers surface it as a server-side fault, with the raw
// reply attached for diagnosis.
var ErrBadUpstreamJSON = errors.New("reasoning service returned malformed JSON")

// StripCodeFence removes a single leading/trailing markdown fence if the
// whole reply is wrapped in one. Models add fences even when told not to.
func StripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	lines := strings.Split(cleaned, "\n")
	if len(lines) < 2 {
		return cleaned
	}

	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExtractJSONArray finds the first top-level [...] span in the reply and
// decodes it into out. Text around the array is ignored; anything less
// array-shaped is an ErrBadUpstreamJSON carrying the raw reply.
func ExtractJSONArray(raw string, out interface{}) error {
	cleaned := StripCodeFence(raw)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("%w: no JSON array found in %q", ErrBadUpstreamJSON, raw)
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v in %q", ErrBadUpstreamJSON, err, raw)
	}
	return nil
}

// ExtractJSONObject is the {...} counterpart of ExtractJSONArray.
func ExtractJSONObject(raw string, out interface{}) error {
	cleaned := StripCodeFence(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("%w: no JSON object found in %q", ErrBadUpstreamJSON, raw)
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v in %q", ErrBadUpstreamJSON, err, raw)
	}
	return nil
}
