package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripFences removes leading/trailing markdown code-fence markers and
// surrounding whitespace from model output.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ParseListing parses raw model text into ListingFields after fence
// stripping. Any parse failure maps to ErrMalformedResponse; no partial or
// best-effort extraction is attempted.
func ParseListing(text string) (*ListingFields, error) {
	jsonStr := stripFences(text)
	if jsonStr == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	var fields ListingFields
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &fields, nil
}
