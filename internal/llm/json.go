package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON decodes a model answer that was instructed to be JSON only.
// Surrounding whitespace and one enclosing markdown fence (``` or ```json)
// are tolerated; nothing else is stripped. Unknown fields are ignored.
func DecodeJSON(text string, v any) error {
	s := StripFence(text)
	if s == "" {
		return fmt.Errorf("empty response")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid JSON: trailing data after value")
	}
	return nil
}

// StripFence removes a single enclosing ``` fence (with optional language tag)
// from s and trims whitespace.
func StripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := s[3 : len(s)-3]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		tag := strings.TrimSpace(inner[:nl])
		if tag == "" || isWord(tag) {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func isWord(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
