package identify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/reperio/internal/models"
)

// systemPrompt instructs the model to identify the item and respond with a
// single JSON object matching the candidate schema.
const systemPrompt = `You identify industrial and consumer parts from photos and keyword descriptions.

Respond with a single JSON object and nothing else:
{
  "part_name": "specific part name",
  "category": "broad category, e.g. fastener, bearing, electronics",
  "confidence": 0.0-1.0,
  "raw_description": "one or two sentences describing the item",
  "supplier_url_hints": ["https://...", "..."]
}

supplier_url_hints lists product or supplier pages where this part is plausibly sold, most relevant first. Use full URLs. If you cannot identify the item, set confidence to 0 and part_name to your best guess.`

var validate = validator.New()

// buildUserPrompt produces the text portion of the identification request
func buildUserPrompt(keywords string) string {
	if keywords == "" {
		return "Identify the part shown in the attached image."
	}
	return fmt.Sprintf("Identify this part. User-supplied keywords: %s", keywords)
}

// parseCandidate extracts and validates the candidate JSON from a model
// response, tolerating surrounding prose and markdown fences.
func parseCandidate(response string, maxURLHints int) (*models.IdentificationCandidate, error) {
	raw := extractJSON(response)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var candidate models.IdentificationCandidate
	if err := json.Unmarshal([]byte(raw), &candidate); err != nil {
		return nil, fmt.Errorf("failed to parse candidate JSON: %w", err)
	}

	if err := validate.Struct(&candidate); err != nil {
		return nil, fmt.Errorf("candidate failed validation: %w", err)
	}

	if maxURLHints > 0 && len(candidate.SupplierURLHints) > maxURLHints {
		candidate.SupplierURLHints = candidate.SupplierURLHints[:maxURLHints]
	}

	return &candidate, nil
}

// extractJSON returns the first top-level JSON object in the text
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
