// Package language maps document URIs to the language families the feature
// providers understand, and derives language identifiers from file names.
package language

import (
	"net/url"
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/bmatcuk/doublestar/v4"
)

// Family is a group of source languages sharing one completion catalog.
type Family int

const (
	// FamilyNone means no catalog applies.
	FamilyNone Family = iota
	// FamilyECMA covers TypeScript and JavaScript, with or without JSX.
	FamilyECMA
	// FamilyKotlin covers Kotlin sources.
	FamilyKotlin
)

func (f Family) String() string {
	switch f {
	case FamilyECMA:
		return "ecma"
	case FamilyKotlin:
		return "kotlin"
	default:
		return "none"
	}
}

// SourceGlob matches, below a directory, every file that belongs to a
// family.
const SourceGlob = "**/*.{ts,tsx,js,jsx,kt}"

// familyPatterns is matched against the base name, first match wins.
// Extensions are case-sensitive.
var familyPatterns = []struct {
	pattern string
	family  Family
}{
	{"*.{ts,tsx,js,jsx}", FamilyECMA},
	{"*.kt", FamilyKotlin},
}

// FamilyOf returns the family of the document at uri.
func FamilyOf(uri string) Family {
	name := BaseName(uri)
	for _, p := range familyPatterns {
		if ok, err := doublestar.Match(p.pattern, name); err == nil && ok {
			return p.family
		}
	}
	return FamilyNone
}

// IDFromURI derives a lowercase language identifier (e.g. "kotlin") from the
// file name of uri. It returns "" when the file name is not recognized.
func IDFromURI(uri string) string {
	name := BaseName(uri)
	if name == "" {
		return ""
	}
	lexer := lexers.Match(name)
	if lexer == nil {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(lexer.Config().Name, " ", ""))
}

// BaseName returns the last path element of uri. Non-URL input is treated as
// a slash-separated path.
func BaseName(uri string) string {
	p := uri
	if parsed, err := url.Parse(uri); err == nil && parsed.Scheme != "" {
		p = parsed.Path
		if p == "" {
			p = parsed.Opaque
		}
	}
	if p == "" {
		return ""
	}
	base := path.Base(p)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
