// Package revision models a single code change under analysis: its identity
// on the review service, its parsed patch, and the improvement patches the
// analyzers produce for it.
package revision

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/stackreview/internal/patch"
	"github.com/stackreview/internal/phabricator"
)

// descriptorRegex matches the diff PHID descriptors accepted as input.
var descriptorRegex = regexp.MustCompile(`^PHID-DIFF-\w+$`)

// Service is the subset of the review-service client the revision needs.
type Service interface {
	SearchDiffsByPHID(ctx context.Context, diffPHID string) ([]phabricator.Diff, error)
	LoadRevision(ctx context.Context, revisionPHID string) (*phabricator.RevisionInfo, error)
	Host() string
}

// Revision is a code change under analysis. Lines and Files are populated
// by AnalyzePatch after the stack resolver has exposed the patch text.
type Revision struct {
	DiffPHID string
	DiffID   int
	PHID     string
	ID       int
	Title    string
	BugID    string

	// BaseRevision is the base recorded on the revision's own diff, used
	// when the revision has no parents.
	BaseRevision string

	// Patch is the raw unified diff of this revision only, not ancestors.
	Patch string

	Files []string
	Lines map[string]patch.LineSet

	ImprovementPatches []*ImprovementPatch

	host string
}

// New loads a revision from its diff PHID descriptor. The descriptor must
// denote exactly one diff on the service.
func New(ctx context.Context, descriptor string, svc Service) (*Revision, error) {
	if !descriptorRegex.MatchString(descriptor) {
		return nil, fmt.Errorf("invalid diff descriptor %q", descriptor)
	}

	diffs, err := svc.SearchDiffsByPHID(ctx, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to load diff %s: %w", descriptor, err)
	}
	if len(diffs) != 1 {
		return nil, fmt.Errorf("expected exactly one diff for %s, got %d", descriptor, len(diffs))
	}
	diff := diffs[0]

	info, err := svc.LoadRevision(ctx, diff.RevisionPHID)
	if err != nil {
		return nil, fmt.Errorf("failed to load revision %s: %w", diff.RevisionPHID, err)
	}

	return &Revision{
		DiffPHID:     descriptor,
		DiffID:       diff.ID,
		PHID:         diff.RevisionPHID,
		ID:           info.ID,
		Title:        info.Title,
		BugID:        info.BugID,
		BaseRevision: diff.BaseRevision,
		host:         svc.Host(),
	}, nil
}

// AnalyzePatch extracts the modified line sets from the loaded patch text.
func (r *Revision) AnalyzePatch(analyzer *patch.Analyzer) error {
	if r.Patch == "" {
		return fmt.Errorf("revision %s has no patch loaded", r.DiffPHID)
	}

	lines, err := analyzer.Analyze(r.Patch)
	if err != nil {
		return err
	}

	r.Lines = lines
	r.Files = make([]string, 0, len(lines))
	for path := range lines {
		r.Files = append(r.Files, path)
	}
	sort.Strings(r.Files)
	return nil
}

// Contains reports whether the issue falls on a line modified by this patch.
func (r *Revision) Contains(issue patch.Issue) bool {
	return patch.Match(r.Lines, issue)
}

// HasNativeFiles reports whether any touched file has one of the given
// extensions, compared case-insensitively.
func (r *Revision) HasNativeFiles(extensions []string) bool {
	for _, file := range r.Files {
		ext := strings.ToLower(filepath.Ext(file))
		for _, want := range extensions {
			if ext == want {
				return true
			}
		}
	}
	return false
}

// URL returns the canonical web URL of the revision.
func (r *Revision) URL() string {
	return fmt.Sprintf("https://%s/D%d", r.host, r.ID)
}

func (r *Revision) String() string {
	return fmt.Sprintf("Phabricator #%d - %s", r.DiffID, r.DiffPHID)
}

// Summary is the flat serializable representation exposed to downstream
// consumers. Field names are stable.
type Summary struct {
	Source         string `json:"source"`
	DiffPHID       string `json:"diff_phid"`
	PHID           string `json:"phid"`
	ID             int    `json:"id"`
	URL            string `json:"url"`
	HasNativeFiles bool   `json:"has_native_files"`
	Title          string `json:"title"`
	BugID          string `json:"bug_id"`
}

// Summary builds the serializable representation of this revision.
// nativeExtensions configures the source-file classification.
func (r *Revision) Summary(nativeExtensions []string) Summary {
	return Summary{
		Source:         "phabricator",
		DiffPHID:       r.DiffPHID,
		PHID:           r.PHID,
		ID:             r.ID,
		URL:            r.URL(),
		HasNativeFiles: r.HasNativeFiles(nativeExtensions),
		Title:          r.Title,
		BugID:          r.BugID,
	}
}
