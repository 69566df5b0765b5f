package features

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/language"
	"github.com/tsumiki/tsumiki-ls/internal/textdoc"
)

const (
	missingImportTitle = "Add missing import"
	missingImportText  = "import React from \"react\";\n"
)

// Hover describes the cursor line: its trimmed text in bold, the document's
// file name and the 1-based line number.
func Hover(uri protocol.DocumentURI, text string, pos protocol.Position) *protocol.Hover {
	line := textdoc.Line(textdoc.Lines(text), pos.Line)
	value := fmt.Sprintf("**%s**\n\nFile: %s\nLine: %d",
		strings.TrimSpace(line), language.BaseName(string(uri)), uint64(pos.Line)+1)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: value},
	}
}

// CodeActions always offers the same quick fix: insert a React import at the
// top of the document. Content, range and language are ignored.
func CodeActions(uri protocol.DocumentURI) []protocol.CodeAction {
	return []protocol.CodeAction{{
		Title: missingImportTitle,
		Kind:  protocol.QuickFix,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentURI][]protocol.TextEdit{
				uri: {{Range: protocol.Range{}, NewText: missingImportText}},
			},
		},
	}}
}

// Format trims leading and trailing whitespace from every line and returns a
// single edit replacing the whole document. Line count and order are kept.
func Format(text string) []protocol.TextEdit {
	lines := textdoc.Lines(text)
	trimmed := make([]string, len(lines))
	for i, l := range lines {
		trimmed[i] = strings.TrimSpace(l)
	}
	return []protocol.TextEdit{{
		Range:   textdoc.FullRange(lines),
		NewText: strings.Join(trimmed, "\n"),
	}}
}
