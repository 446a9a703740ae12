package artifacts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stackreview/internal/retry"
)

// HTTPPublisher uploads artifacts to a blob endpoint with PUT requests.
// Uploads are retried with backoff; transient blob-store failures should
// not lose a finished improvement patch.
type HTTPPublisher struct {
	baseURL string
	token   string
	client  *http.Client

	// Retry controls the upload backoff policy.
	Retry retry.Config
}

// NewHTTPPublisher creates a publisher for the given blob endpoint.
func NewHTTPPublisher(baseURL, token string) *HTTPPublisher {
	return &HTTPPublisher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{},
		Retry:   retry.DefaultConfig(),
	}
}

// Publish uploads the artifact and returns its public URL.
func (p *HTTPPublisher) Publish(ctx context.Context, name, content, contentType string, ttl time.Duration) (string, error) {
	artifactURL := fmt.Sprintf("%s/%s", p.baseURL, url.PathEscape(name))

	err := retry.Do(ctx, p.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, "PUT", artifactURL, strings.NewReader(content))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Add("Authorization", "Bearer "+p.token)
		req.Header.Add("Content-Type", contentType)
		req.Header.Add("X-Artifact-TTL", strconv.Itoa(int(ttl.Seconds())))

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return artifactURL, nil
}
