// Package textdoc holds the line and UTF-16 arithmetic shared by the document
// store and the feature providers.
//
// Positions on the wire count UTF-16 code units; Go strings are indexed by
// byte. All conversions clamp instead of failing.
package textdoc

import (
	"strings"
	"unicode/utf8"

	"go.lsp.dev/protocol"
)

// Lines splits text on "\n" only. A trailing newline yields a final empty
// line and "" yields one empty line; "\r" stays part of its line.
func Lines(text string) []string {
	return strings.Split(text, "\n")
}

// Line returns line n of lines, or "" when n is out of range.
func Line(lines []string, n uint32) string {
	if int64(n) >= int64(len(lines)) {
		return ""
	}
	return lines[n]
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUTF16Len(r)
	}
	return n
}

// UTF16Offset converts a byte offset within s to a UTF-16 offset.
func UTF16Offset(s string, byteOff int) int {
	if byteOff <= 0 {
		return 0
	}
	if byteOff >= len(s) {
		return UTF16Len(s)
	}
	n := 0
	for i, r := range s {
		if i >= byteOff {
			break
		}
		n += runeUTF16Len(r)
	}
	return n
}

// ByteOffset converts a UTF-16 offset within s to a byte offset. Offsets past
// the end clamp to len(s); an offset inside a surrogate pair resolves to the
// start of that rune.
func ByteOffset(s string, utf16Off int) int {
	if utf16Off <= 0 {
		return 0
	}
	n := 0
	for i, r := range s {
		w := runeUTF16Len(r)
		if n+w > utf16Off {
			return i
		}
		n += w
	}
	return len(s)
}

func runeUTF16Len(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}

// LineRange returns the range covering all of line n, from character 0 to
// the line's UTF-16 length.
func LineRange(n uint32, line string) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: n, Character: 0},
		End:   protocol.Position{Line: n, Character: clampUint32(UTF16Len(line))},
	}
}

// Offset converts pos to a byte offset in text. Lines past the end resolve to
// len(text); characters past the end of a line resolve to the line end.
func Offset(text string, pos protocol.Position) int {
	lines := Lines(text)
	if int64(pos.Line) >= int64(len(lines)) {
		return len(text)
	}
	off := 0
	for i := range int(pos.Line) {
		off += len(lines[i]) + 1
	}
	return off + ByteOffset(lines[pos.Line], int(pos.Character))
}

// Apply replaces the text between rng.Start and rng.End with newText. A
// reversed range is normalized.
func Apply(text string, rng protocol.Range, newText string) string {
	start := Offset(text, rng.Start)
	end := Offset(text, rng.End)
	if end < start {
		start, end = end, start
	}
	return text[:start] + newText + text[end:]
}

// FullRange returns the range from 0:0 to the end of the last line of lines.
func FullRange(lines []string) protocol.Range {
	last := len(lines) - 1
	if last < 0 {
		return protocol.Range{}
	}
	return protocol.Range{
		Start: protocol.Position{Line: 0, Character: 0},
		End: protocol.Position{
			Line:      clampUint32(last),
			Character: clampUint32(UTF16Len(lines[last])),
		},
	}
}

func clampUint32(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v) //nolint:gosec // line/column numbers are well within uint32 range
}
