package features

import (
	"regexp"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/textdoc"
)

var (
	// functionDecl matches a function-introducing keyword (JS "function",
	// Kotlin "fun") followed by an identifier, anywhere on the line.
	functionDecl = regexp.MustCompile(`(?:function|fun)\s+(\w+)`)
	classDecl    = regexp.MustCompile(`class\s+(\w+)`)

	wordToken = regexp.MustCompile(`\w+`)
)

// Definition reports the cursor line itself when it looks like a function or
// class declaration, and nil otherwise. Only the cursor line is examined.
func Definition(uri protocol.DocumentURI, text string, pos protocol.Position) *protocol.Location {
	line := textdoc.Line(textdoc.Lines(text), pos.Line)
	if !functionDecl.MatchString(line) && !classDecl.MatchString(line) {
		return nil
	}
	return &protocol.Location{URI: uri, Range: textdoc.LineRange(pos.Line, line)}
}

// SymbolAt returns the first run of word characters on the cursor line, not
// necessarily the one under the cursor.
func SymbolAt(text string, pos protocol.Position) (string, bool) {
	line := textdoc.Line(textdoc.Lines(text), pos.Line)
	sym := wordToken.FindString(line)
	return sym, sym != ""
}

// References lists, for each line containing the cursor line's symbol as a
// plain substring, the first occurrence on that line. "foo" also matches
// inside "foobar". The result is never nil.
func References(uri protocol.DocumentURI, text string, pos protocol.Position) []protocol.Location {
	sym, ok := SymbolAt(text, pos)
	if !ok {
		return []protocol.Location{}
	}
	locs := []protocol.Location{}
	for _, occ := range firstOccurrences(textdoc.Lines(text), sym) {
		locs = append(locs, protocol.Location{URI: uri, Range: occ})
	}
	return locs
}

// Rename replaces the first occurrence of the cursor line's symbol on every
// line that contains it. newName is not validated. It returns nil when the
// cursor line has no symbol.
func Rename(uri protocol.DocumentURI, text string, pos protocol.Position, newName string) *protocol.WorkspaceEdit {
	sym, ok := SymbolAt(text, pos)
	if !ok {
		return nil
	}
	edits := []protocol.TextEdit{}
	for _, occ := range firstOccurrences(textdoc.Lines(text), sym) {
		edits = append(edits, protocol.TextEdit{Range: occ, NewText: newName})
	}
	return &protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentURI][]protocol.TextEdit{uri: edits},
	}
}

// firstOccurrences returns at most one range per line: the first match of sym.
func firstOccurrences(lines []string, sym string) []protocol.Range {
	var ranges []protocol.Range
	symLen := uint32(textdoc.UTF16Len(sym)) //nolint:gosec // bounded by line length
	for i, line := range lines {
		idx := strings.Index(line, sym)
		if idx < 0 {
			continue
		}
		start := uint32(textdoc.UTF16Offset(line, idx)) //nolint:gosec // bounded by line length
		n := uint32(i)                                   //nolint:gosec // line count fits in uint32
		ranges = append(ranges, protocol.Range{
			Start: protocol.Position{Line: n, Character: start},
			End:   protocol.Position{Line: n, Character: start + symLen},
		})
	}
	return ranges
}
