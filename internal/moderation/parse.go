package moderation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nikhilbhutani/reviewguard/internal/models"
)

// ErrMalformed is returned when a structured reply cannot be decoded or is
// missing a required field.
var ErrMalformed = errors.New("malformed classifier response")

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ParseLines reads a Status/Reason/Result reply laid out one field per line.
// Blank lines are ignored. A missing Result line is derived from the status.
func ParseLines(answer string) models.Verdict {
	var lines []string
	for _, l := range strings.Split(answer, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	var v models.Verdict
	if len(lines) > 0 {
		v.Status = field(lines[0], "Status:")
	}
	if len(lines) > 1 {
		v.Reason = field(lines[1], "Reason:")
	}
	if len(lines) > 2 {
		v.Result = strings.ToLower(field(lines[2], "Result:"))
	}
	return normalize(v)
}

func field(line, label string) string {
	return strings.TrimSpace(strings.Replace(line, label, "", 1))
}

// ParseStructured decodes a JSON reply, bare or inside a markdown code fence.
// Status and reason are required; result falls back to the status default.
func ParseStructured(answer string) (models.Verdict, error) {
	var v models.Verdict
	content := strings.TrimSpace(answer)

	if err := json.Unmarshal([]byte(content), &v); err != nil {
		m := jsonFence.FindStringSubmatch(content)
		if len(m) < 2 {
			return models.Verdict{}, fmt.Errorf("%w: %s", ErrMalformed, content)
		}
		v = models.Verdict{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &v); err != nil {
			return models.Verdict{}, fmt.Errorf("%w: %s", ErrMalformed, content)
		}
	}

	v.Status = strings.TrimSpace(v.Status)
	v.Reason = strings.TrimSpace(v.Reason)
	v.Result = strings.ToLower(strings.TrimSpace(v.Result))
	if v.Status == "" {
		return models.Verdict{}, fmt.Errorf("%w: missing status", ErrMalformed)
	}
	if v.Reason == "" {
		return models.Verdict{}, fmt.Errorf("%w: missing reason", ErrMalformed)
	}
	return normalize(v), nil
}

func normalize(v models.Verdict) models.Verdict {
	if v.Status == "In Violation" {
		v.Status = models.StatusViolation
	}
	if v.Result == "" {
		v.Result = DefaultResult(v.Status)
	}
	return v
}

// DefaultResult maps a status onto the result used when the model gave none.
func DefaultResult(status string) string {
	switch status {
	case models.StatusCompliant:
		return models.ResultNo
	case models.StatusViolation:
		return models.ResultYes
	default:
		return models.ResultMaybe
	}
}
