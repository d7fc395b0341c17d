package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListing(t *testing.T) {
	raw := `{"brand":"Nike","category":"Clothing","title":"Nike Hoodie","material":"Cotton","condition":"Good","conditionScore":"Good","flaws":"No visible flaws detected","description":"Comfy hoodie."}`

	for name, text := range map[string]string{
		"plain":              raw,
		"json fence":         "```json\n" + raw + "\n```",
		"bare fence":         "```\n" + raw + "\n```",
		"surrounding space":  "\n\n  " + raw + "  \n",
		"fence with space":   "  ```json\n" + raw + "\n```  ",
		"unclosed json fence": "```json\n" + raw,
	} {
		t.Run(name, func(t *testing.T) {
			fields, err := ParseListing(text)
			require.NoError(t, err)
			assert.Equal(t, "Nike", fields.Brand)
			assert.Equal(t, "Nike Hoodie", fields.Title)
		})
	}
}

func TestParseListing_Malformed(t *testing.T) {
	for name, text := range map[string]string{
		"empty":         "",
		"only fences":   "```json\n```",
		"prose":         "I could not identify the item.",
		"truncated":     `{"brand":"Nike","title":`,
		"json array":    `["brand"]`,
	} {
		t.Run(name, func(t *testing.T) {
			fields, err := ParseListing(text)
			assert.Nil(t, fields)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestParseListing_UnknownFieldsIgnored(t *testing.T) {
	fields, err := ParseListing(`{"brand":"Levi's","extra":42}`)
	require.NoError(t, err)
	assert.Equal(t, "Levi's", fields.Brand)
}

func TestApplyDefaults(t *testing.T) {
	var f ListingFields
	ApplyDefaults(&f)

	assert.Equal(t, "Unknown", f.Brand)
	assert.Equal(t, "Clothing", f.Category)
	assert.Equal(t, "Untitled", f.Title)
	assert.Equal(t, "Unknown", f.Material)
	assert.Equal(t, "Good", f.Condition)
	assert.Equal(t, "Good", f.ConditionScore)
	assert.Equal(t, NoFlawsSentinel, f.Flaws)
	assert.Equal(t, 50, f.SellProbability)
}

func TestApplyDefaults_ScoreFollowsCondition(t *testing.T) {
	f := ListingFields{Condition: "Fair"}
	ApplyDefaults(&f)
	assert.Equal(t, "Fair", f.ConditionScore)
}

func TestApplyDefaults_PreservesPopulatedFields(t *testing.T) {
	f := ListingFields{
		Brand:           "Patagonia",
		Category:        "Outdoor",
		Title:           "Fleece",
		Material:        "Polyester",
		Condition:       "Like new",
		ConditionScore:  "9/10",
		Flaws:           "Small stain on sleeve",
		Description:     "Warm fleece.",
		SellProbability: 80,
	}
	before := f
	ApplyDefaults(&f)
	assert.Equal(t, before, f)
}
