// Package diagnostics computes the line-level warnings published for every
// open document.
package diagnostics

import (
	"strings"

	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/textdoc"
)

const (
	// Source tags every diagnostic produced here.
	Source = "tsumiki-ls"

	// CodeUnmatchedBrackets identifies the bracket balance check.
	CodeUnmatchedBrackets = "unmatched-brackets"

	unmatchedBracketsMessage = "Unmatched brackets"
)

// Compute checks every line independently and returns one warning per line
// whose count of opening brackets "([{" differs from its count of closing
// brackets ")]}". Order, nesting, strings and comments are not considered,
// so ")(" is balanced. The result is never nil.
func Compute(text string) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	for i, line := range textdoc.Lines(text) {
		if !unbalanced(line) {
			continue
		}
		diags = append(diags, protocol.Diagnostic{
			Range:    textdoc.LineRange(uint32(i), line), //nolint:gosec // line count fits in uint32
			Severity: protocol.DiagnosticSeverityWarning,
			Code:     CodeUnmatchedBrackets,
			Source:   Source,
			Message:  unmatchedBracketsMessage,
		})
	}
	return diags
}

func unbalanced(line string) bool {
	open := strings.Count(line, "(") + strings.Count(line, "[") + strings.Count(line, "{")
	closing := strings.Count(line, ")") + strings.Count(line, "]") + strings.Count(line, "}")
	return open != closing
}
