// Package patch parses unified diff text into per-file modified line sets
// and decides whether reported issues fall on modified lines.
package patch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// ErrMalformedPatch is returned when diff text is absent, empty or unparseable.
var ErrMalformedPatch = errors.New("malformed patch")

// Stats receives advisory telemetry about analyzed patches.
type Stats interface {
	ObserveFiles(n int)
	ObserveLines(n int)
}

// Analyzer parses unified diff text into a mapping from file path to the
// set of modified line numbers. It is stateless apart from the optional
// stats observer.
type Analyzer struct {
	stats Stats
}

// NewAnalyzer creates an Analyzer. stats may be nil.
func NewAnalyzer(stats Stats) *Analyzer {
	return &Analyzer{stats: stats}
}

// Analyze parses patchText and returns, per file, the union of line numbers
// that were modified in place or newly added. Both render as added lines in
// a unified diff, so the set is the post-patch line number of every added
// line. Deleted-only lines have no post-patch line number and are excluded.
// A file entry with no content change (pure rename) keeps an empty set.
func (a *Analyzer) Analyze(patchText string) (map[string]LineSet, error) {
	if strings.TrimSpace(patchText) == "" {
		return nil, fmt.Errorf("%w: empty diff text", ErrMalformedPatch)
	}

	files, _, err := gitdiff.Parse(strings.NewReader(patchText))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no file entries in diff", ErrMalformedPatch)
	}

	lines := make(map[string]LineSet, len(files))
	total := 0
	for _, f := range files {
		path := filePath(f)
		set := make(LineSet)
		for _, frag := range f.TextFragments {
			newLine := int(frag.NewPosition)
			for _, l := range frag.Lines {
				switch l.Op {
				case gitdiff.OpAdd:
					set.Add(newLine)
					newLine++
				case gitdiff.OpContext:
					newLine++
				case gitdiff.OpDelete:
					// no post-patch line number
				}
			}
		}
		lines[path] = set
		total += set.Len()
	}

	if a.stats != nil {
		a.stats.ObserveFiles(len(lines))
		a.stats.ObserveLines(total)
	}

	return lines, nil
}

// filePath returns the post-patch path of a file entry. go-gitdiff strips
// the a/ and b/ prefixes from "diff --git" headers itself but leaves them
// on traditional ---/+++ headers, so resolve those the way git does at -p1.
// Only strip when both recorded sides carry the prefix, so a file that
// genuinely lives under a/ or b/ keeps its path.
func filePath(f *gitdiff.File) string {
	oldName, newName := f.OldName, f.NewName
	if (oldName == "" || strings.HasPrefix(oldName, "a/")) &&
		(newName == "" || strings.HasPrefix(newName, "b/")) {
		oldName = strings.TrimPrefix(oldName, "a/")
		newName = strings.TrimPrefix(newName, "b/")
	}
	if newName != "" {
		return newName
	}
	return oldName
}
