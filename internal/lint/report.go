package lint

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	colorWarning = lipgloss.Color("#F4D03F")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorMuted   = lipgloss.Color("#5F7A84")
)

type textStyles struct {
	file    lipgloss.Style
	line    lipgloss.Style
	rule    lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

func newTextStyles(w io.Writer, color bool) textStyles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return textStyles{
		file:    r.NewStyle().Bold(true),
		line:    r.NewStyle().Foreground(colorWarning),
		rule:    r.NewStyle().Foreground(colorMuted),
		success: r.NewStyle().Foreground(colorSuccess),
		failure: r.NewStyle().Foreground(colorWarning).Bold(true),
	}
}

// WriteText prints one "file:line: message (rule)" line per issue followed
// by a summary. Styling is applied only when color is true.
func WriteText(w io.Writer, results []FileResult, color bool) error {
	st := newTextStyles(w, color)

	issues, files := 0, 0
	for _, res := range results {
		if len(res.Issues) > 0 {
			files++
		}
		for _, issue := range res.Issues {
			issues++
			if _, err := fmt.Fprintf(w, "%s:%s: %s %s\n",
				st.file.Render(res.File),
				st.line.Render(fmt.Sprint(issue.Line)),
				issue.Message,
				st.rule.Render("("+issue.Rule+")"),
			); err != nil {
				return err
			}
		}
	}

	var summary string
	if issues == 0 {
		summary = st.success.Render(fmt.Sprintf("no issues in %s", plural(len(results), "file")))
	} else {
		summary = st.failure.Render(fmt.Sprintf("%s in %s", plural(issues, "issue"), plural(files, "file")))
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

// WriteJSON prints results as an indented JSON array.
func WriteJSON(w io.Writer, results []FileResult) error {
	if results == nil {
		results = []FileResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
