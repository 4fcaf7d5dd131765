package services

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNoIntent means the model's text carried no parseable JSON block.
	ErrNoIntent = errors.New("no intent JSON found in model response")

	fenceRe     = regexp.MustCompile("(?i)```(?:json)?")
	leadTicksRe = regexp.MustCompile("(?m)^[\\s]*`+")
	jsonBlockRe = regexp.MustCompile(`(?s)\{.*?\}`)
)

// ParseIntent extracts the first JSON object from raw model text,
// tolerating Markdown code fences and stray backticks around it.
func ParseIntent(text string) (Filters, error) {
	cleaned := fenceRe.ReplaceAllString(text, "")
	cleaned = leadTicksRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	block := jsonBlockRe.FindString(cleaned)
	if block == "" {
		return Filters{}, ErrNoIntent
	}

	var f Filters
	if err := json.Unmarshal([]byte(block), &f); err != nil {
		return Filters{}, err
	}
	return f, nil
}
