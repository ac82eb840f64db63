package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Tier records which step resolved the reevaluation date.
type Tier string

const (
	TierStructured Tier = "structured" // date came from the JSON field
	TierRegexDate  Tier = "regex_date" // date found by scanning the raw text
	TierDefault    Tier = "default"    // no usable date, horizon applied
)

// Result is always usable: ReevaluationDate is strictly after the parse time.
type Result struct {
	Rationale        string
	ReevaluationDate time.Time
	Confidence       *float64
	RawFallbackUsed  bool
	Tier             Tier
	Structured       bool   // a JSON document was found
	Source           Source // extraction tier when Structured
}

const maxRationaleLen = 4000

var (
	rationaleKeys  = []string{"rationale", "reasoning", "explanation", "reason", "summary"}
	dateKeys       = []string{"reevaluation_date", "re_evaluation_date", "reevaluationDate", "review_date", "reevaluate_on"}
	confidenceKeys = []string{"confidence", "confidence_score", "confidenceScore"}
)

// Parser extracts rationale, reevaluation date and confidence from a
// completion. The zero value is not usable; use New.
type Parser struct {
	now            func() time.Time
	defaultHorizon time.Duration
}

// New returns a parser that falls back to now+defaultHorizon.
func New(defaultHorizon time.Duration) *Parser {
	return &Parser{now: time.Now, defaultHorizon: defaultHorizon}
}

// WithClock overrides the time source.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

// Parse never panics and never fails.
func (p *Parser) Parse(raw string) Result {
	now := p.now()
	res := Result{}

	if ext, ok := ExtractJSON(raw); ok {
		doc := gjson.Parse(ext.JSON)
		if doc.IsObject() {
			res.Structured = true
			res.Source = ext.Source
			res.Rationale = firstString(doc, rationaleKeys)
			res.Confidence = confidence(doc)
			if date, ok := dateField(doc); ok && date.After(now) {
				res.ReevaluationDate = date
				res.Tier = TierStructured
			}
		}
	}

	if res.Rationale == "" {
		res.Rationale = partialRationale(raw)
	}
	if res.Rationale == "" {
		res.Rationale = proseRationale(raw)
	}
	res.Rationale = truncate(res.Rationale, maxRationaleLen)

	if res.Tier == "" {
		if date, ok := scanFutureDate(raw, now); ok {
			res.ReevaluationDate = date
			res.Tier = TierRegexDate
		}
	}

	if res.Tier == "" {
		res.ReevaluationDate = now.Add(p.defaultHorizon)
		res.RawFallbackUsed = true
		res.Tier = TierDefault
	}
	return res
}

// DefaultDate is the fallback reevaluation date relative to now.
func (p *Parser) DefaultDate() time.Time {
	return p.now().Add(p.defaultHorizon)
}

func firstString(doc gjson.Result, keys []string) string {
	for _, k := range keys {
		v := doc.Get(k)
		if v.Exists() && v.Type == gjson.String {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func dateField(doc gjson.Result) (time.Time, bool) {
	for _, k := range dateKeys {
		v := doc.Get(k)
		if !v.Exists() {
			continue
		}
		if t, ok := parseDateField(v.String()); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// confidence accepts 0-1 ratios, 0-100 percentages and numeric strings.
func confidence(doc gjson.Result) *float64 {
	for _, k := range confidenceKeys {
		v := doc.Get(k)
		var f float64
		switch v.Type {
		case gjson.Number:
			f = v.Float()
		case gjson.String:
			parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v.String()), "%"), 64)
			if err != nil {
				continue
			}
			f = parsed
		default:
			continue
		}
		if f > 1 && f <= 100 {
			f /= 100
		}
		if f < 0 || f > 1 {
			continue
		}
		return &f
	}
	return nil
}

// partialRationale reads the rationale of a truncated object, which gjson
// can still walk up to the point where it was cut off.
func partialRationale(raw string) string {
	i := strings.IndexByte(raw, '{')
	if i < 0 {
		return ""
	}
	return firstString(gjson.Parse(raw[i:]), rationaleKeys)
}

// proseRationale strips code fences and surrounding whitespace.
func proseRationale(raw string) string {
	text := fenceRe.ReplaceAllString(raw, "")
	return strings.TrimSpace(text)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
