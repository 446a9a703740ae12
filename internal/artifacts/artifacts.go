// Package artifacts persists improvement patches, either on the local
// filesystem for dev runs or through a blob-publishing service.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stackreview/internal/revision"
)

// patchContentType makes published patches display in browsers instead of
// triggering a download.
const patchContentType = "text/plain; charset=utf-8"

// Publisher pushes a named artifact to durable storage and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, name, content, contentType string, ttl time.Duration) (string, error)
}

// Store writes improvement patches to a local directory, for dev and tests.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the patch under the store directory and records its path.
func (s *Store) Save(p *revision.ImprovementPatch) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(s.dir, p.Name)
	if err := os.WriteFile(path, []byte(p.Content), 0644); err != nil {
		return fmt.Errorf("failed to write improvement patch: %w", err)
	}

	p.Path = path
	log.Info().Str("path", path).Int("length", len(p.Content)).Msg("Improvement patch saved")
	return nil
}

// PublishPatch pushes the patch through the publisher and records its URL.
func PublishPatch(ctx context.Context, pub Publisher, p *revision.ImprovementPatch, ttl time.Duration) error {
	url, err := pub.Publish(ctx, p.Name, p.Content, patchContentType, ttl)
	if err != nil {
		return fmt.Errorf("failed to publish improvement patch %s: %w", p.Name, err)
	}

	p.URL = url
	log.Info().Str("url", url).Msg("Improvement patch published")
	return nil
}
