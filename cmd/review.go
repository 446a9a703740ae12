package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/stackreview/internal/artifacts"
	"github.com/stackreview/internal/config"
	"github.com/stackreview/internal/logging"
	"github.com/stackreview/internal/mercurial"
	"github.com/stackreview/internal/patch"
	"github.com/stackreview/internal/phabricator"
	"github.com/stackreview/internal/revision"
	"github.com/stackreview/internal/stack"
	"github.com/stackreview/internal/telemetry"
)

// ReviewCommand returns the review command
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Prepare and analyze a stacked revision",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "no-apply",
				Aliases: []string{"n"},
				Usage:   "Prepare the working copy but leave the target patch unapplied",
			},
		},
		ArgsUsage: "DIFF_PHID",
		Action:    runReview,
	}
}

func runReview(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: diff PHID")
	}
	descriptor := c.Args().Get(0)

	// Load configuration
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx := context.Background()
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Str("descriptor", descriptor).Msg("Starting analysis run")

	client := phabricator.NewClient(cfg.Phabricator.URL, cfg.Phabricator.Token)
	repo := mercurial.NewRepo(cfg.Repository.Path)
	resolver := stack.NewResolver(client, repo, cfg.Repository.Trunk)

	// Load the target revision and prepare the working copy: base checkout
	// plus ancestor patches, target patch left unapplied.
	rev, err := revision.New(ctx, descriptor, client)
	if err != nil {
		return err
	}
	log.Info().Stringer("revision", rev).Str("title", rev.Title).Msg("Loaded revision")
	if err := resolver.Prepare(ctx, rev); err != nil {
		return err
	}

	if c.Bool("no-apply") {
		log.Info().Stringer("revision", rev).Msg("Working copy prepared, target patch not applied")
		return nil
	}

	if err := resolver.Apply(ctx, rev); err != nil {
		return err
	}

	analyzer := patch.NewAnalyzer(telemetry.NewRecorder())
	if err := rev.AnalyzePatch(analyzer); err != nil {
		return err
	}
	log.Info().
		Stringer("revision", rev).
		Int("files", len(rev.Files)).
		Msg("Patch analyzed")

	if err := persistPatches(ctx, cfg, rev); err != nil {
		return err
	}

	// Emit the revision summary for downstream consumers.
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rev.Summary(cfg.Analysis.NativeExtensions))
}

// persistPatches saves improvement patches locally and, when a publish
// endpoint is configured, pushes them to the blob store.
func persistPatches(ctx context.Context, cfg *config.Config, rev *revision.Revision) error {
	if len(rev.ImprovementPatches) == 0 {
		return nil
	}

	store := artifacts.NewStore(cfg.Artifacts.Dir)
	for _, p := range rev.ImprovementPatches {
		if err := store.Save(p); err != nil {
			return err
		}
	}

	if cfg.Artifacts.PublishURL == "" {
		return nil
	}

	publisher := artifacts.NewHTTPPublisher(cfg.Artifacts.PublishURL, cfg.Artifacts.PublishToken)
	ttl := time.Duration(cfg.Artifacts.TTLDays) * 24 * time.Hour
	for _, p := range rev.ImprovementPatches {
		if err := artifacts.PublishPatch(ctx, publisher, p, ttl); err != nil {
			return err
		}
	}
	return nil
}
