// Package stack resolves a revision's dependency chain and prepares the
// working copy so analysis runs against the correct tree state: base
// checkout plus ancestor patches applied, target patch left for a separate
// explicit apply step.
package stack

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/stackreview/internal/phabricator"
	"github.com/stackreview/internal/revision"
)

// importUser is the synthetic author recorded on imported patches.
const importUser = "reviewbot"

// Service is the subset of the review-service client the resolver needs.
type Service interface {
	SearchDiffsByRevision(ctx context.Context, revisionPHID string) ([]phabricator.Diff, error)
	LoadParents(ctx context.Context, revisionPHID string) ([]string, error)
	RawDiff(ctx context.Context, diffID int) (string, error)
}

// WorkingCopy is the version-control driver the resolver prepares.
type WorkingCopy interface {
	Identify(ctx context.Context, ref string) error
	Checkout(ctx context.Context, ref string) error
	Import(ctx context.Context, patch []byte, message, user string) error
}

// ChainEntry binds an ancestor to the diff selected to represent it.
type ChainEntry struct {
	DiffPHID string
	DiffID   int
}

// Plan is the outcome of stack resolution. Chain holds ancestors in
// application order (oldest first) with the target's own diff as the last
// entry. Patches maps every chain diff id to its raw patch text.
type Plan struct {
	Base    string
	Chain   []ChainEntry
	Patches map[int]string
}

// Resolver prepares a single working copy for one revision at a time. All
// service and repository calls are blocking and strictly sequential; no
// retries happen here.
type Resolver struct {
	svc   Service
	repo  WorkingCopy
	trunk string
}

// NewResolver creates a Resolver. trunk is the fallback checkout point used
// when a base revision is missing or unknown to the repository.
func NewResolver(svc Service, repo WorkingCopy, trunk string) *Resolver {
	return &Resolver{svc: svc, repo: repo, trunk: trunk}
}

// Resolve discovers the revision's dependency chain, selects the base
// checkout point and fetches the raw patch text for every chain entry.
// It performs service queries only; the working copy is not touched.
func (r *Resolver) Resolve(ctx context.Context, rev *revision.Revision) (*Plan, error) {
	// Base candidate when there are no parents: the target diff's own base.
	base := rev.BaseRevision

	parents, err := r.svc.LoadParents(ctx, rev.PHID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parents of %s: %w", rev.PHID, err)
	}

	// Discover ancestors in service order. Each parent may have several
	// diffs over its history; the one with the greatest numeric id is the
	// most recent and represents the parent in the chain.
	discovered := make([]ChainEntry, 0, len(parents))
	for _, parent := range parents {
		log.Info().Str("phid", parent).Msg("Loading parent diff")

		diffs, err := r.svc.SearchDiffsByRevision(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("failed to load diffs of parent %s: %w", parent, err)
		}
		if len(diffs) == 0 {
			return nil, fmt.Errorf("no diffs available for parent %s", parent)
		}
		sort.Slice(diffs, func(i, j int) bool { return diffs[i].ID < diffs[j].ID })
		last := diffs[len(diffs)-1]

		discovered = append(discovered, ChainEntry{DiffPHID: last.PHID, DiffID: last.ID})

		// The base of the last parent processed wins.
		base = last.BaseRevision
	}

	// Application order is the explicit reverse of discovery order, with
	// the target's own diff as the final entry.
	chain := make([]ChainEntry, 0, len(discovered)+1)
	for i := len(discovered) - 1; i >= 0; i-- {
		chain = append(chain, discovered[i])
	}
	chain = append(chain, ChainEntry{DiffPHID: rev.DiffPHID, DiffID: rev.DiffID})

	// A missing or unresolvable base is recoverable: fall back to trunk.
	if base == "" || r.repo.Identify(ctx, base) != nil {
		log.Warn().
			Str("base", base).
			Str("trunk", r.trunk).
			Msg("Missing base revision, using trunk")
		base = r.trunk
	}

	patches := make(map[int]string, len(chain))
	for _, entry := range chain {
		raw, err := r.svc.RawDiff(ctx, entry.DiffID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch raw diff %d: %w", entry.DiffID, err)
		}
		patches[entry.DiffID] = raw
	}

	return &Plan{Base: base, Chain: chain, Patches: patches}, nil
}

// Prepare resolves the stack and drives the working copy to its analyzed
// state: checkout of the base, ancestor patches imported oldest to newest.
// The target's own patch is exposed on the revision but intentionally not
// applied; Apply is a separate explicit step so the caller controls when
// the tree transitions into its final state.
func (r *Resolver) Prepare(ctx context.Context, rev *revision.Revision) error {
	plan, err := r.Resolve(ctx, rev)
	if err != nil {
		return err
	}

	rev.Patch = plan.Patches[rev.DiffID]

	log.Info().Str("base", plan.Base).Msg("Updating working copy to base")
	if err := r.repo.Checkout(ctx, plan.Base); err != nil {
		return &RepositoryError{Op: "checkout", Target: plan.Base, Err: err}
	}

	for _, entry := range plan.Chain[:len(plan.Chain)-1] {
		log.Info().Str("phid", entry.DiffPHID).Msg("Applying parent diff")
		message := fmt.Sprintf("Imported patch %s", entry.DiffPHID)
		if err := r.repo.Import(ctx, []byte(plan.Patches[entry.DiffID]), message, importUser); err != nil {
			return &RepositoryError{Op: "import", Target: entry.DiffPHID, Err: err}
		}
	}

	return nil
}

// Apply imports the target patch as a single commit on top of the prepared
// working copy. This is the last step before issue correlation.
func (r *Resolver) Apply(ctx context.Context, rev *revision.Revision) error {
	if rev.Patch == "" {
		return fmt.Errorf("revision %s has no patch loaded", rev.DiffPHID)
	}

	message := fmt.Sprintf("Analyzed patch %s", rev.DiffPHID)
	if err := r.repo.Import(ctx, []byte(rev.Patch), message, importUser); err != nil {
		return &RepositoryError{Op: "import", Target: rev.DiffPHID, Err: err}
	}

	log.Info().Str("phid", rev.DiffPHID).Msg("Applied target patch")
	return nil
}
