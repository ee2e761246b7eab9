package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrNoJSON = errors.New("no JSON object in model output")

var (
	thinkBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)
	codeFence  = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
)

// ExtractJSON pulls the JSON object out of a model reply: reasoning blocks
// and markdown fences are removed, then everything from the first '{' to
// the last '}' is kept.
func ExtractJSON(raw string) (string, error) {
	s := thinkBlock.ReplaceAllString(raw, "")
	s = codeFence.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

// DecodeJSON extracts and unmarshals a model reply into v.
func DecodeJSON(raw string, v any) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
