package patch

import "github.com/rs/zerolog/log"

// Issue is a defect reported by an analyzer against a file and line span.
type Issue struct {
	Path      string
	Line      int
	LineCount int
}

// Match reports whether the issue's line span intersects the modified lines
// for its file. An issue against a file outside the mapping is not an error,
// just non-actionable for this revision; it is logged and rejected. A
// zero-length span never matches.
func Match(lines map[string]LineSet, issue Issue) bool {
	modified, ok := lines[issue.Path]
	if !ok {
		log.Warn().
			Str("path", issue.Path).
			Int("line", issue.Line).
			Msg("Issue path is not in revision")
		return false
	}

	for n := issue.Line; n < issue.Line+issue.LineCount; n++ {
		if modified.Contains(n) {
			return true
		}
	}
	return false
}
