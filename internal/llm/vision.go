package llm

import (
	"context"
	"errors"
)

// Listing failure reasons. The gateway maps every backend or transport
// problem onto one of these so callers can decide whether a retry makes
// sense (transport and credential failures are retryable, a malformed
// response is not).
var (
	// ErrEmpty means zero images or a missing credential were supplied.
	// Detected before any network call.
	ErrEmpty = errors.New("no images or credential provided")
	// ErrInvalidCredential maps authentication errors from the backend.
	ErrInvalidCredential = errors.New("invalid inference credential")
	// ErrMalformedResponse means the raw model text failed to parse as a
	// listing after fence stripping. Not retryable with the same input.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrTransport covers network errors, timeouts and interrupted streams.
	ErrTransport = errors.New("inference transport failure")
)

// Condition values the model is instructed to choose from.
var ConditionValues = []string{"New with tags", "Like new", "Good", "Fair", "Poor"}

// NoFlawsSentinel is the literal the model returns when nothing is wrong
// with the item.
const NoFlawsSentinel = "No visible flaws detected"

// ListingFields is the structured result parsed from the model response.
// SellProbability is optional in the response; the pricing estimator
// normally overrides it.
type ListingFields struct {
	Brand           string `json:"brand"`
	Category        string `json:"category"`
	Title           string `json:"title"`
	Material        string `json:"material"`
	Condition       string `json:"condition"`
	ConditionScore  string `json:"conditionScore"`
	Flaws           string `json:"flaws"`
	Description     string `json:"description"`
	SellProbability int    `json:"sellProbability,omitempty"`
}

// ApplyDefaults fills every empty field with its fixed default so a draft
// built from a degenerate model response is still fully populated.
func ApplyDefaults(f *ListingFields) {
	if f.Brand == "" {
		f.Brand = "Unknown"
	}
	if f.Category == "" {
		f.Category = "Clothing"
	}
	if f.Title == "" {
		f.Title = "Untitled"
	}
	if f.Material == "" {
		f.Material = "Unknown"
	}
	if f.Condition == "" {
		f.Condition = "Good"
	}
	if f.ConditionScore == "" {
		f.ConditionScore = f.Condition
	}
	if f.Flaws == "" {
		f.Flaws = NoFlawsSentinel
	}
	if f.SellProbability <= 0 {
		f.SellProbability = 50
	}
}

// Gateway wraps the vision-inference capability. Implementations reject
// empty input with ErrEmpty before any network call and map all failures
// onto the sentinel errors above.
type Gateway interface {
	// AnalyzeStream starts a streaming analysis of the ordered images and
	// returns a single-pass event sequence. Concatenating all deltas in
	// emission order reconstructs the full raw response text.
	AnalyzeStream(ctx context.Context, images [][]byte, credential string) (*Stream, error)

	// Analyze performs a non-streaming analysis, functionally equivalent
	// to draining the stream to its terminal event.
	Analyze(ctx context.Context, images [][]byte, credential string) (*ListingFields, error)
}
