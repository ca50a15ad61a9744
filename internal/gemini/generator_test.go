package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docentbot/docent/internal/query"
)

func TestParseConfidence(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantText string
		wantConf query.Confidence
	}{
		{
			name:     "high marker at end",
			input:    "Use the release pipeline.\n\n[CONFIDENCE:HIGH]",
			wantText: "Use the release pipeline.",
			wantConf: query.ConfidenceHigh,
		},
		{
			name:     "medium marker",
			input:    "Probably the settings file. [CONFIDENCE:MEDIUM]",
			wantText: "Probably the settings file.",
			wantConf: query.ConfidenceMedium,
		},
		{
			name:     "low marker",
			input:    "I don't know. [CONFIDENCE:LOW]",
			wantText: "I don't know.",
			wantConf: query.ConfidenceLow,
		},
		{
			name:     "missing marker defaults to medium",
			input:    "An answer without any marker.",
			wantText: "An answer without any marker.",
			wantConf: query.ConfidenceMedium,
		},
		{
			name:     "marker in the middle is stripped",
			input:    "First part. [CONFIDENCE:HIGH] Second part.",
			wantText: "First part.  Second part.",
			wantConf: query.ConfidenceHigh,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, conf := parseConfidence(tc.input)
			assert.Equal(t, tc.wantText, text)
			assert.Equal(t, tc.wantConf, conf)
		})
	}
}
