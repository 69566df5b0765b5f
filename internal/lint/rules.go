// Package lint runs the bracket balance check over files on disk for the
// check command.
package lint

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"go.lsp.dev/protocol"
	"golang.org/x/sync/errgroup"

	"github.com/tsumiki/tsumiki-ls/internal/diagnostics"
	"github.com/tsumiki/tsumiki-ls/internal/language"
	"github.com/tsumiki/tsumiki-ls/internal/textdoc"
)

// Issue represents a problem found on one line of a file.
type Issue struct {
	// Rule is the diagnostic code (e.g., "unmatched-brackets")
	Rule string `json:"rule"`
	// Line is the 1-based line number
	Line int `json:"line"`
	// Message is the human-readable description of the issue
	Message string `json:"message"`
	// Severity is the issue severity (error, warning, info, hint)
	Severity string `json:"severity"`
}

// FileResult contains the results for a single file.
type FileResult struct {
	// File is the path as given or expanded
	File string `json:"file"`
	// Language is the detected language identifier, if any
	Language string `json:"language,omitempty"`
	// Lines is the total number of lines in the file
	Lines int `json:"lines"`
	// Issues is the list of issues found, never nil
	Issues []Issue `json:"issues"`
}

// CheckContent runs the diagnostics engine over content.
func CheckContent(file string, content []byte) FileResult {
	text := string(content)
	diags := diagnostics.Compute(text)
	issues := make([]Issue, 0, len(diags))
	for _, d := range diags {
		issues = append(issues, Issue{
			Rule:     ruleOf(d),
			Line:     int(d.Range.Start.Line) + 1,
			Message:  d.Message,
			Severity: severityName(d.Severity),
		})
	}
	return FileResult{
		File:     file,
		Language: language.IDFromURI(filepath.ToSlash(file)),
		Lines:    len(textdoc.Lines(text)),
		Issues:   issues,
	}
}

// ruleOf returns the string code of d, or "" when it has none.
func ruleOf(d protocol.Diagnostic) string {
	code, _ := d.Code.(string)
	return code
}

// severityName is the lowercase name used in CLI output.
func severityName(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityWarning:
		return "warning"
	case protocol.DiagnosticSeverityInformation:
		return "info"
	case protocol.DiagnosticSeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// CheckFile reads and checks one file.
func CheckFile(path string) (FileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	return CheckContent(path, content), nil
}

// Run checks every file named by paths with at most jobs files in flight.
// jobs <= 0 means no limit. Results are in path order.
func Run(ctx context.Context, paths []string, jobs int) ([]FileResult, error) {
	files, err := ExpandPaths(paths)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := CheckFile(file)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ExpandPaths resolves each argument to files: a regular file is kept as
// is, a directory contributes every source file below it, and anything else
// is treated as a glob pattern that must match at least one file. The
// result is sorted and free of duplicates.
func ExpandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.Glob(os.DirFS(p), language.SourceGlob, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", p, err)
			}
			for _, m := range matches {
				files = append(files, filepath.Join(p, filepath.FromSlash(m)))
			}
		case err == nil:
			files = append(files, p)
		default:
			matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %s: %w", p, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("%s: no files match: %w", p, fs.ErrNotExist)
			}
			files = append(files, matches...)
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// HasIssues reports whether any result has at least one issue.
func HasIssues(results []FileResult) bool {
	for _, r := range results {
		if len(r.Issues) > 0 {
			return true
		}
	}
	return false
}
