package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return New(90 * 24 * time.Hour).WithClock(func() time.Time { return testNow })
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_FencedJSON(t *testing.T) {
	raw := "```json\n{\"rationale\": \"Competitors charge more; demand is inelastic.\", \"reevaluation_date\": \"2025-07-03\"}\n```"

	res := newTestParser().Parse(raw)

	assert.Equal(t, date(2025, 7, 3), res.ReevaluationDate)
	assert.Equal(t, "Competitors charge more; demand is inelastic.", res.Rationale)
	assert.False(t, res.RawFallbackUsed)
	assert.Equal(t, TierStructured, res.Tier)
	assert.Equal(t, SourceFenced, res.Source)
}

func TestParse_ObjectEmbeddedInProse(t *testing.T) {
	raw := `Sure! Here is my answer: {"rationale": "Raise slightly", "reevaluation_date": "2025-09-15", "confidence": 0.72} Let me know.`

	res := newTestParser().Parse(raw)

	assert.Equal(t, SourceObject, res.Source)
	assert.Equal(t, date(2025, 9, 15), res.ReevaluationDate)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.72, *res.Confidence, 1e-9)
}

func TestParse_WholeText(t *testing.T) {
	res := newTestParser().Parse(`  {"rationale":"hold","reevaluation_date":"2025/08/01"}  `)

	assert.Equal(t, TierStructured, res.Tier)
	assert.Equal(t, date(2025, 8, 1), res.ReevaluationDate)
	assert.Equal(t, "hold", res.Rationale)
}

func TestParse_SingleQuotes(t *testing.T) {
	raw := `{'rationale': 'It's priced below the market', 'reevaluation_date': '2025-10-01', 'confidence': '80%'}`

	res := newTestParser().Parse(raw)

	assert.True(t, res.Structured)
	assert.Equal(t, "It's priced below the market", res.Rationale)
	assert.Equal(t, date(2025, 10, 1), res.ReevaluationDate)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.8, *res.Confidence, 1e-9)
}

func TestParse_RegexFallback(t *testing.T) {
	res := newTestParser().Parse("I recommend reevaluating this on 2025-08-10 given market conditions.")

	assert.Equal(t, date(2025, 8, 10), res.ReevaluationDate)
	assert.Equal(t, TierRegexDate, res.Tier)
	assert.False(t, res.RawFallbackUsed)
	assert.Equal(t, "I recommend reevaluating this on 2025-08-10 given market conditions.", res.Rationale)
}

func TestParse_RegexSkipsPastDates(t *testing.T) {
	raw := "Last change was 2024-12-01. Check again on 09/30/2025."

	res := newTestParser().Parse(raw)

	assert.Equal(t, TierRegexDate, res.Tier)
	assert.Equal(t, date(2025, 9, 30), res.ReevaluationDate)
}

func TestParse_RegexFindsISOTimestamp(t *testing.T) {
	res := newTestParser().Parse("Revisit at 2025-08-10T09:00:00Z once the season ends.")

	assert.Equal(t, TierRegexDate, res.Tier)
	assert.Equal(t, date(2025, 8, 10), res.ReevaluationDate)
	assert.False(t, res.RawFallbackUsed)
}

func TestParse_TruncatedObjectKeepsRationale(t *testing.T) {
	raw := `Here you go: {"rationale": "raise it", "reevaluation_date": "2025-07-03"`

	res := newTestParser().Parse(raw)

	assert.False(t, res.Structured)
	assert.Equal(t, "raise it", res.Rationale)
	assert.Equal(t, TierRegexDate, res.Tier)
	assert.Equal(t, date(2025, 7, 3), res.ReevaluationDate)
}

func TestParse_PastStructuredDateFallsThrough(t *testing.T) {
	raw := `{"rationale": "ok", "reevaluation_date": "2024-01-01"}`

	res := newTestParser().Parse(raw)

	assert.Equal(t, TierDefault, res.Tier)
	assert.True(t, res.RawFallbackUsed)
	assert.Equal(t, "ok", res.Rationale)
	assert.True(t, res.ReevaluationDate.After(testNow))
}

func TestParse_GarbageUsesDefault(t *testing.T) {
	res := newTestParser().Parse("%%% ]]] not even close {{{")

	assert.Equal(t, testNow.Add(90*24*time.Hour), res.ReevaluationDate)
	assert.True(t, res.RawFallbackUsed)
	assert.Equal(t, TierDefault, res.Tier)
	assert.Nil(t, res.Confidence)
	assert.False(t, res.Structured)
}

func TestParse_EmptyInput(t *testing.T) {
	res := newTestParser().Parse("")

	assert.True(t, res.RawFallbackUsed)
	assert.Empty(t, res.Rationale)
	assert.True(t, res.ReevaluationDate.After(testNow))
}

func TestParse_ConfidenceVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"ratio", `{"confidence": 0.4}`, ptr(0.4)},
		{"percentage", `{"confidence_score": 65}`, ptr(0.65)},
		{"string", `{"confidence": "0.9"}`, ptr(0.9)},
		{"out of range", `{"confidence": 250}`, nil},
		{"negative", `{"confidence": -0.2}`, nil},
		{"not a number", `{"confidence": "high"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestParser().Parse(tt.raw)
			if tt.want == nil {
				assert.Nil(t, res.Confidence)
				return
			}
			require.NotNil(t, res.Confidence)
			assert.InDelta(t, *tt.want, *res.Confidence, 1e-9)
		})
	}
}

func TestParse_AlwaysFuture(t *testing.T) {
	inputs := []string{
		"",
		"```json\n{\"rationale\": ",
		`{"reevaluation_date": "not a date"}`,
		`{"reevaluation_date": 20250701}`,
		"```\n```",
		`{'a': 'b', "c": 'd'}`,
		"13/45/2025 and 2025-13-40",
		"{\"rationale\": \"éè\"}",
		`[1,2,3]`,
		`"just a string"`,
		"{{{{{{{{{{",
		"}}}}}}",
	}

	p := newTestParser()
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			res := p.Parse(in)
			assert.True(t, res.ReevaluationDate.After(testNow), "input %q", in)
		})
	}
}

func ptr(f float64) *float64 { return &f }
