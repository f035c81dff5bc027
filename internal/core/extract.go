package core

import "encoding/json"

// ExtractJSON pulls the first JSON object embedded in free-form LLM output.
// The scanner tracks brace depth and string/escape state, so braces inside
// string values do not confuse it. Candidates that balance but fail to
// parse are skipped and the scan resumes at the next opening brace.
func ExtractJSON(text string) (map[string]any, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}

		end, ok := scanObject(text, start)
		if !ok {
			// No balanced object from here on; later opening braces are
			// inside this unterminated candidate.
			return nil, false
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(text[start:end]), &obj); err == nil {
			return obj, true
		}
		start = end - 1
	}
	return nil, false
}

// scanObject returns the index one past the brace that closes the object
// starting at start.
func scanObject(text string, start int) (int, bool) {
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
				return i + 1, true
			}
		}
	}
	return 0, false
}

// FallbackDiagnosis is the fixed payload returned when the LLM output holds
// no parseable JSON object; the raw text is preserved in the explanation.
func FallbackDiagnosis(raw string) map[string]any {
	return map[string]any{
		"likely_causes":       []any{"Unable to parse diagnosis"},
		"severity":            "unknown",
		"recommended_actions": []any{"Consult a professional mechanic"},
		"diagnostic_codes":    []any{},
		"explanation":         raw,
	}
}
