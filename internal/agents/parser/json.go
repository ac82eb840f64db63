// Package parser turns free-form language model answers into structured fields.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Source tells which extraction tier produced the JSON candidate.
type Source string

const (
	SourceFenced Source = "fenced"
	SourceObject Source = "object"
	SourceWhole  Source = "whole"
)

// Extraction is a JSON document recovered from model output.
type Extraction struct {
	JSON       string
	Source     Source
	Normalized bool // single quotes were rewritten to make it valid
}

var fenceRe = regexp.MustCompile("(?s)```[ \t]*(?:[A-Za-z]+)?[ \t]*\r?\n?(.*?)```")

// ExtractJSON finds the first JSON document in raw, trying in order the
// interior of a fenced code block, the first balanced {...} span and the
// whole text. Each candidate is accepted as is or after single-quote
// normalization. ok is false when no candidate yields valid JSON.
func ExtractJSON(raw string) (Extraction, bool) {
	type candidate struct {
		text   string
		source Source
	}

	var candidates []candidate
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		inner := strings.TrimSpace(m[1])
		candidates = append(candidates, candidate{inner, SourceFenced})
		if obj, found := firstObject(inner); found && obj != inner {
			candidates = append(candidates, candidate{obj, SourceFenced})
		}
	}
	if obj, found := firstObject(raw); found {
		candidates = append(candidates, candidate{obj, SourceObject})
	}
	candidates = append(candidates, candidate{strings.TrimSpace(raw), SourceWhole})

	for _, c := range candidates {
		if c.text == "" {
			continue
		}
		if json.Valid([]byte(c.text)) {
			return Extraction{JSON: c.text, Source: c.source}, true
		}
		if normalized := normalizeQuotes(c.text); json.Valid([]byte(normalized)) {
			return Extraction{JSON: normalized, Source: c.source, Normalized: true}, true
		}
	}
	return Extraction{}, false
}

// firstObject returns the first balanced top-level {...} span of s,
// honouring braces inside double or single quoted strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	var quote byte
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote:
				quote = 0
			}
			continue
		}

		switch ch {
		case '"':
			quote = ch
		case '\'':
			// apostrophes in bare prose would swallow the rest of the text;
			// only treat a quote as a string delimiter right after a JSON token
			if opensString(s, i) {
				quote = ch
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func opensString(s string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[', ':', ',':
			return true
		default:
			return false
		}
	}
	return false
}

// normalizeQuotes rewrites single-quoted strings as double-quoted JSON
// strings. Apostrophes inside double-quoted strings are left alone, and an
// apostrophe inside a single-quoted string is kept when it is not followed
// by a JSON delimiter.
func normalizeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	const (
		outside = iota
		inDouble
		inSingle
	)
	state := outside

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch state {
		case outside:
			switch ch {
			case '"':
				state = inDouble
				b.WriteByte(ch)
			case '\'':
				state = inSingle
				b.WriteByte('"')
			default:
				b.WriteByte(ch)
			}
		case inDouble:
			b.WriteByte(ch)
			if ch == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if ch == '"' {
				state = outside
			}
		case inSingle:
			switch {
			case ch == '\\' && i+1 < len(s):
				i++
				if s[i] == '\'' {
					b.WriteByte('\'')
				} else {
					b.WriteByte('\\')
					b.WriteByte(s[i])
				}
			case ch == '"':
				b.WriteString(`\"`)
			case ch == '\'' && closesString(s, i):
				state = outside
				b.WriteByte('"')
			default:
				b.WriteByte(ch)
			}
		}
	}
	return b.String()
}

func closesString(s string, i int) bool {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':', ',', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}
