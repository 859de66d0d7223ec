package planparse

import (
	"fmt"
	"strings"
)

// Parse detects which form doc is in (structured Markdown preferred, then
// embedded JSON) and returns a validated PlanDefinition.
func Parse(doc string) (*PlanDefinition, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, ErrEmptyDocument
	}
	if IsMarkdownForm(doc) {
		return ParseMarkdown(doc)
	}
	return ParseJSONFallback(doc)
}

// Validate runs the full parse-and-validate pipeline without requiring the
// caller to keep the resulting PlanDefinition, for dry-run validation (used
// by the daemon's plan_validate RPC).
func Validate(doc string) error {
	_, err := Parse(doc)
	return err
}

// ErrEmptyDocument is returned by Parse when doc is blank.
var ErrEmptyDocument = fmt.Errorf("plan document is empty")
