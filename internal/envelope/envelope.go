// Package envelope extracts the JSON envelope each phase expects in the
// model's final message. Models wrap the envelope in a ```json fence
// most of the time, but the parser also accepts a bare JSON object so a
// missing fence does not lose a cycle's output.
package envelope

import (
	"encoding/json"
	"strings"
)

// Extract returns the raw bytes of the first JSON envelope found in the
// output: a fenced ```json block when present, otherwise the first
// syntactically valid top-level JSON object. The second return is false
// when no envelope could be located.
func Extract(output string) ([]byte, bool) {
	if raw, ok := fencedBlock(output); ok {
		return raw, true
	}
	return bareObject(output)
}

// Decode extracts the envelope and unmarshals it into v.
func Decode(output string, v any) bool {
	raw, ok := Extract(output)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func fencedBlock(output string) ([]byte, bool) {
	rest := output
	for {
		i := strings.Index(rest, "```json")
		if i < 0 {
			return nil, false
		}
		rest = rest[i+len("```json"):]
		end := strings.Index(rest, "```")
		if end < 0 {
			return nil, false
		}
		candidate := strings.TrimSpace(rest[:end])
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), true
		}
		rest = rest[end+3:]
	}
}

// bareObject scans for the first balanced {...} span that parses as
// JSON. Braces inside string literals are tracked so prose containing a
// lone brace does not derail the scan.
func bareObject(output string) ([]byte, bool) {
	for start := 0; start < len(output); start++ {
		if output[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(output); i++ {
			c := output[i]
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
					candidate := output[start : i+1]
					if json.Valid([]byte(candidate)) {
						return []byte(candidate), true
					}
					i = len(output)
				}
			}
		}
	}
	return nil, false
}
