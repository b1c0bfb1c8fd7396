package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const candidateJSON = `{
  "part_name": "M8 Hex Bolt",
  "category": "fastener",
  "confidence": 0.91,
  "raw_description": "Zinc plated M8 hex head bolt.",
  "supplier_url_hints": ["https://one.example/bolts", "https://two.example/fasteners"]
}`

func TestParseCandidateCleanJSON(t *testing.T) {
	got, err := parseCandidate(candidateJSON, 10)
	require.NoError(t, err)
	assert.Equal(t, "M8 Hex Bolt", got.PartName)
	assert.Equal(t, "fastener", got.Category)
	assert.InDelta(t, 0.91, got.Confidence, 0.001)
	assert.Len(t, got.SupplierURLHints, 2)
}

func TestParseCandidateMarkdownFence(t *testing.T) {
	got, err := parseCandidate("```json\n"+candidateJSON+"\n```", 10)
	require.NoError(t, err)
	assert.Equal(t, "M8 Hex Bolt", got.PartName)
}

func TestParseCandidateSurroundingProse(t *testing.T) {
	response := "Here is the identification you asked for:\n\n" + candidateJSON + "\n\nLet me know if you need anything else."
	got, err := parseCandidate(response, 10)
	require.NoError(t, err)
	assert.Equal(t, "M8 Hex Bolt", got.PartName)
}

func TestParseCandidateBracesInsideStrings(t *testing.T) {
	response := `{"part_name": "Bracket {L-shaped}", "category": "hardware", "confidence": 0.5, "raw_description": "", "supplier_url_hints": []}`
	got, err := parseCandidate(response, 10)
	require.NoError(t, err)
	assert.Equal(t, "Bracket {L-shaped}", got.PartName)
}

func TestParseCandidateTruncatesURLHints(t *testing.T) {
	response := `{"part_name": "Widget", "confidence": 0.8, "supplier_url_hints": ["https://a.example", "https://b.example", "https://c.example", "https://d.example"]}`
	got, err := parseCandidate(response, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, got.SupplierURLHints)
}

func TestParseCandidateNoJSON(t *testing.T) {
	_, err := parseCandidate("I could not identify the part from this image.", 10)
	assert.Error(t, err)
}

func TestParseCandidateMalformedJSON(t *testing.T) {
	_, err := parseCandidate(`{"part_name": "Widget", "confidence": }`, 10)
	assert.Error(t, err)
}

func TestParseCandidateValidation(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"missing part name", `{"category": "fastener", "confidence": 0.9}`},
		{"confidence above one", `{"part_name": "Widget", "confidence": 1.5}`},
		{"negative confidence", `{"part_name": "Widget", "confidence": -0.1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCandidate(tt.response, 10)
			assert.Error(t, err)
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	assert.Contains(t, buildUserPrompt(""), "attached image")
	assert.Contains(t, buildUserPrompt("m8 bolt zinc"), "m8 bolt zinc")
}
