// Package redaction removes origin-location tokens from provider text
// before it can reach customer-visible surfaces. The transforms are
// pure and total; a false negative here is a data leak, so matching
// biases toward over-redaction.
package redaction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-tracking/core"
)

// Placeholder replaces messages that redact down to nothing.
const Placeholder = "In transit"

const maxRedactionPasses = 4

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	edgePunct      = regexp.MustCompile(`^[,.\-\s]+|[,.\-\s]+$`)
	punctOnly      = regexp.MustCompile(`^[,.\-\s]*$`)
)

// RedactText strips every denylisted token, collapses whitespace runs
// and trims leftover edge punctuation. Removal runs to a fixpoint so
// tokens formed by the removal of an inner match are caught too, which
// also makes the transform idempotent.
func RedactText(text string) string {
	if text == "" {
		return ""
	}

	redacted := text
	for pass := 0; pass < maxRedactionPasses; pass++ {
		previous := redacted
		for _, pattern := range denylist {
			redacted = pattern.ReplaceAllString(redacted, "")
		}
		if redacted == previous {
			break
		}
	}

	redacted = whitespaceRuns.ReplaceAllString(redacted, " ")
	redacted = strings.TrimSpace(redacted)
	redacted = edgePunct.ReplaceAllString(redacted, "")
	return redacted
}

// NeedsPlaceholder reports whether redacted text carries no content.
func NeedsPlaceholder(text string) bool {
	return punctOnly.MatchString(text)
}

// ApplyRedaction is the customer-facing composition: redact, then fall
// back to the neutral placeholder when nothing readable remains.
func ApplyRedaction(text string) string {
	redacted := RedactText(text)
	if NeedsPlaceholder(redacted) {
		return Placeholder
	}
	return redacted
}

// VerifyClean confirms no denylisted token survives in text. A match
// means the pattern table is broken; the caller must treat the error
// as fatal rather than retryable.
func VerifyClean(text string) error {
	for _, pattern := range denylist {
		if pattern.MatchString(text) {
			return core.NewRedactionLeak(
				fmt.Sprintf("redaction: denylisted token survived redaction (pattern %q)", pattern.String()),
			)
		}
	}
	return nil
}
