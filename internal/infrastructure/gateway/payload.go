package gateway

import "encoding/json"

// ExtractJSONObject isolates the first balanced JSON object in provider
// output. Models wrap payloads in code fences or narrative text; a balanced
// brace scan that is aware of string literals recovers the object without
// trusting the surrounding noise.
func ExtractJSONObject(raw string) ([]byte, bool) {
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, r := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := raw[start : i+1]
				if json.Valid([]byte(candidate)) {
					return []byte(candidate), true
				}
				start = -1
			}
		}
	}
	return nil, false
}
