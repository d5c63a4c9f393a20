package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/danya2271/LocalLLMTradingBot/pkg/errors"
)

func TestExtract_ActionsList(t *testing.T) {
	text := "Let me analyze the market first.\n" +
		"```json\n" +
		`{"reasoning": "consolidation, testing the waters", "actions": ["BUY[100][1][BTC-USDT]", "WAIT[900]"]}` +
		"\n```\nGood luck."

	env, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"BUY[100][1][BTC-USDT]", "WAIT[900]"}, env.Commands)
	assert.Equal(t, "consolidation, testing the waters", env.Rationale)
}

func TestExtract_SingleAction(t *testing.T) {
	env, err := Extract(`{"reasoning": "flat market", "action": "HOLD"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"HOLD"}, env.Commands)
}

func TestExtract_EmptyActionsList(t *testing.T) {
	// Present but empty is not a failure: the batch simply has no directives
	env, err := Extract(`{"actions": []}`)
	require.NoError(t, err)
	assert.Empty(t, env.Commands)
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"no braces at all", "BUY[100][1][BTC-USDT]", apperrors.ErrNoEnvelopeFound},
		{"unbalanced brace", "{ invalid", apperrors.ErrNoEnvelopeFound},
		{"close before open", "} nothing {", apperrors.ErrNoEnvelopeFound},
		{"broken json", `{"actions": ["HOLD"`, apperrors.ErrNoEnvelopeFound},
		{"invalid json inside braces", `{actions: HOLD}`, apperrors.ErrMalformedEnvelope},
		{"non-string action entry", `{"actions": [42]}`, apperrors.ErrMalformedEnvelope},
		{"missing command field", `{"reasoning": "thinking"}`, apperrors.ErrMissingCommandField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtract_UsesOutermostBraces(t *testing.T) {
	// Prose braces around the object must not confuse the scan as long as the
	// substring between the first '{' and last '}' is the object itself
	env, err := Extract(`{"reasoning": "nested {detail} here", "actions": ["HOLD"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"HOLD"}, env.Commands)
}
