// Package features implements the heuristic, line-based language features:
// completion, definition, references, hover, code actions, formatting and
// rename.
//
// Every provider is a pure function of a document's URI and text plus the
// request arguments. Nothing here parses source code: matching is done with
// narrow regular expressions and substring search on single lines, and no
// provider looks beyond the document it is given.
package features

import (
	"math"

	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/language"
)

// CompletionTag is the classification stored in CompletionItem.Data and
// consulted by Resolve.
type CompletionTag int

const (
	TagTypeScript CompletionTag = 1
	TagJavaScript CompletionTag = 2
	TagKotlin     CompletionTag = 3
)

type catalogEntry struct {
	label string
	kind  protocol.CompletionItemKind
}

var ecmaCatalog = []catalogEntry{
	{"console.log", protocol.CompletionItemKindFunction},
	{"function", protocol.CompletionItemKindKeyword},
	{"const", protocol.CompletionItemKindKeyword},
	{"let", protocol.CompletionItemKindKeyword},
	{"var", protocol.CompletionItemKindKeyword},
	{"if", protocol.CompletionItemKindKeyword},
	{"for", protocol.CompletionItemKindKeyword},
	{"while", protocol.CompletionItemKindKeyword},
	{"try", protocol.CompletionItemKindKeyword},
	{"catch", protocol.CompletionItemKindKeyword},
	{"async", protocol.CompletionItemKindKeyword},
	{"await", protocol.CompletionItemKindKeyword},
	{"Promise", protocol.CompletionItemKindClass},
	{"Array", protocol.CompletionItemKindClass},
	{"Object", protocol.CompletionItemKindClass},
	{"String", protocol.CompletionItemKindClass},
	{"Number", protocol.CompletionItemKindClass},
	{"Boolean", protocol.CompletionItemKindClass},
	{"Date", protocol.CompletionItemKindClass},
}

var kotlinCatalog = []catalogEntry{
	{"fun", protocol.CompletionItemKindKeyword},
	{"val", protocol.CompletionItemKindKeyword},
	{"var", protocol.CompletionItemKindKeyword},
	{"if", protocol.CompletionItemKindKeyword},
	{"for", protocol.CompletionItemKindKeyword},
	{"while", protocol.CompletionItemKindKeyword},
	{"try", protocol.CompletionItemKindKeyword},
	{"catch", protocol.CompletionItemKindKeyword},
	{"suspend", protocol.CompletionItemKindKeyword},
	{"class", protocol.CompletionItemKindKeyword},
	{"object", protocol.CompletionItemKindKeyword},
	{"interface", protocol.CompletionItemKindKeyword},
	{"data", protocol.CompletionItemKindKeyword},
	{"sealed", protocol.CompletionItemKindKeyword},
	{"enum", protocol.CompletionItemKindKeyword},
	{"String", protocol.CompletionItemKindClass},
	{"Int", protocol.CompletionItemKindClass},
	{"Long", protocol.CompletionItemKindClass},
	{"Double", protocol.CompletionItemKindClass},
	{"Boolean", protocol.CompletionItemKindClass},
	{"List", protocol.CompletionItemKindClass},
	{"Map", protocol.CompletionItemKindClass},
	{"Set", protocol.CompletionItemKindClass},
}

// Completion returns the static catalog for the family of uri. The result
// does not depend on the cursor or on the document text, and is an empty
// slice for files outside any family.
//
// Catalog items carry no Data tag, so Resolve leaves them unchanged.
func Completion(uri protocol.DocumentURI) []protocol.CompletionItem {
	var catalog []catalogEntry
	switch language.FamilyOf(string(uri)) {
	case language.FamilyECMA:
		catalog = ecmaCatalog
	case language.FamilyKotlin:
		catalog = kotlinCatalog
	default:
		return []protocol.CompletionItem{}
	}

	items := make([]protocol.CompletionItem, 0, len(catalog))
	for _, e := range catalog {
		items = append(items, protocol.CompletionItem{Label: e.label, Kind: e.kind})
	}
	return items
}

var resolveDetails = map[CompletionTag][2]string{
	TagTypeScript: {"TypeScript details", "TypeScript documentation"},
	TagJavaScript: {"JavaScript details", "JavaScript documentation"},
	TagKotlin:     {"Kotlin details", "Kotlin documentation"},
}

// Resolve fills Detail and Documentation of an item whose Data is one of the
// known tags. Other items are returned unchanged.
func Resolve(item protocol.CompletionItem) protocol.CompletionItem {
	tag, ok := tagOf(item.Data)
	if !ok {
		return item
	}
	if d, ok := resolveDetails[tag]; ok {
		item.Detail = d[0]
		item.Documentation = d[1]
	}
	return item
}

// WithTag returns item with Data set to tag.
func WithTag(item protocol.CompletionItem, tag CompletionTag) protocol.CompletionItem {
	item.Data = int(tag)
	return item
}

// tagOf reads an integral number from data. Data decoded from the wire holds
// float64 for every JSON number; strings, fractions and other JSON values are
// not tags.
func tagOf(data any) (CompletionTag, bool) {
	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return CompletionTag(f), true
}
