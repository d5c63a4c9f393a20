package directive

import (
	"encoding/json"
	"strings"

	apperrors "github.com/danya2271/LocalLLMTradingBot/pkg/errors"
)

// Envelope is the JSON object the decision service embeds in its answer
type Envelope struct {
	Commands  []string
	Rationale string
}

// envelopePayload distinguishes an absent command field from an empty one,
// and accepts both the list form ("actions") and the single form ("action").
type envelopePayload struct {
	Reasoning string    `json:"reasoning"`
	Actions   *[]string `json:"actions"`
	Action    *string   `json:"action"`
}

// Extract locates the JSON object between the first '{' and the last '}' of
// the text and decodes it. The rationale passes through unvalidated; it only
// ever feeds logging and notifications.
func Extract(text string) (Envelope, error) {
	cleaned := strings.TrimSpace(text)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return Envelope{}, apperrors.ErrNoEnvelopeFound
	}

	var payload envelopePayload
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err != nil {
		return Envelope{}, apperrors.ErrMalformedEnvelope
	}

	switch {
	case payload.Actions != nil:
		return Envelope{Commands: *payload.Actions, Rationale: payload.Reasoning}, nil
	case payload.Action != nil:
		return Envelope{Commands: []string{*payload.Action}, Rationale: payload.Reasoning}, nil
	default:
		return Envelope{}, apperrors.ErrMissingCommandField
	}
}
