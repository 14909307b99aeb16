// Package reconcile extracts structured analysis data from raw generative
// model output.
//
// Model output is treated as hostile: it may wrap the JSON payload in prose
// or code fences, omit fields, or not contain JSON at all. Extraction is
// permissive (find the first object-shaped span) and every field defaults
// individually, so any malformed combination degrades to a usable result
// instead of an error. Parse never panics and never returns an error.
package reconcile

import "encoding/json"

// FallbackComment is returned when the extracted span is not valid JSON.
const FallbackComment = "I could not put your reflection into words this time. The noticing itself still counts."

// Result is the tagged outcome of reconciling one raw model output.
// ParseFailed distinguishes a malformed payload from a valid-but-empty one.
type Result struct {
	Comment     string
	Labels      []string
	Categories  []string
	ParseFailed bool
}

// Field keys of the JSON contract requested from the generator.
const (
	keyComment    = "comment"
	keyFactors    = "factors"
	keyCategories = "categories"
)

// Parse reconciles raw generator text into a Result. It is a pure function:
// identical input always yields an identical result.
func Parse(raw string) Result {
	span := extractObjectSpan(raw)
	if span == "" {
		span = "{}"
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return Result{
			Comment:     FallbackComment,
			Labels:      []string{},
			Categories:  []string{},
			ParseFailed: true,
		}
	}

	// Each field defaults independently: a wrong-typed or missing field
	// never discards the rest of the payload.
	var comment string
	if rawComment, ok := fields[keyComment]; ok {
		_ = json.Unmarshal(rawComment, &comment)
	}

	labels := []string{}
	if rawFactors, ok := fields[keyFactors]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(rawFactors, &items); err == nil {
			for _, f := range items {
				if name, nameOK := labelName(f); nameOK {
					labels = append(labels, name)
				}
			}
		}
	}

	categories := []string{}
	if rawCategories, ok := fields[keyCategories]; ok {
		var items []string
		if err := json.Unmarshal(rawCategories, &items); err == nil && items != nil {
			categories = items
		}
	}

	return Result{
		Comment:    comment,
		Labels:     labels,
		Categories: categories,
	}
}

// labelName accepts either a JSON string ("resentment") or an object with a
// string "name" field ({"name": "resentment", ...}). Anything else is dropped.
func labelName(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name, true
	}
	return "", false
}

// extractObjectSpan returns the first balanced {...} span in the text, or ""
// when no opening brace exists. Braces inside JSON strings are skipped so a
// comment containing "{" cannot derail the scan. An unterminated object
// returns the remainder of the text and is left for the JSON parser to
// reject.
func extractObjectSpan(text string) string {
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}
