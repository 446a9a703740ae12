// Package phabricator is a client for the Conduit API endpoints the
// analysis workflow needs: diff and revision search, parent edges, and
// raw diff retrieval.
package phabricator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// Diff is one concrete rendering of a revision at a point in time.
type Diff struct {
	ID           int
	PHID         string
	RevisionPHID string
	// BaseRevision is the version-control identifier the diff was built
	// against. Empty when Phabricator has no base recorded.
	BaseRevision string
}

// RevisionInfo carries the review metadata of a revision.
type RevisionInfo struct {
	ID    int
	PHID  string
	Title string
	BugID string
}

// Client talks to a Phabricator instance over Conduit.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Conduit client for the given instance URL and API token.
func NewClient(baseURL, token string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{},
		// Conduit throttles aggressive clients; stay well under its limits.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// Host returns the hostname of the Phabricator instance, used to build
// canonical revision URLs.
func (c *Client) Host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL
	}
	return u.Host
}

// conduitEnvelope is the wrapper every Conduit response uses.
type conduitEnvelope struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode string          `json:"error_code"`
	ErrorInfo string          `json:"error_info"`
}

// diffSearchResult mirrors differential.diff.search payloads.
type diffSearchResult struct {
	Data []struct {
		ID     int    `json:"id"`
		PHID   string `json:"phid"`
		Fields struct {
			RevisionPHID string `json:"revisionPHID"`
			Refs         []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"refs"`
		} `json:"fields"`
	} `json:"data"`
}

// revisionSearchResult mirrors differential.revision.search payloads.
type revisionSearchResult struct {
	Data []struct {
		ID     int    `json:"id"`
		PHID   string `json:"phid"`
		Fields struct {
			Title string `json:"title"`
			BugID string `json:"bugzilla.bug-id"`
		} `json:"fields"`
	} `json:"data"`
}

// edgeSearchResult mirrors edge.search payloads.
type edgeSearchResult struct {
	Data []struct {
		SourcePHID      string `json:"sourcePHID"`
		EdgeType        string `json:"edgeType"`
		DestinationPHID string `json:"destinationPHID"`
	} `json:"data"`
}

// SearchDiffsByPHID returns the diffs matching a diff PHID.
func (c *Client) SearchDiffsByPHID(ctx context.Context, diffPHID string) ([]Diff, error) {
	form := url.Values{}
	form.Set("constraints[phids][0]", diffPHID)
	return c.searchDiffs(ctx, form)
}

// SearchDiffsByRevision returns every diff attached to a revision, sorted by
// ascending numeric id.
func (c *Client) SearchDiffsByRevision(ctx context.Context, revisionPHID string) ([]Diff, error) {
	form := url.Values{}
	form.Set("constraints[revisionPHIDs][0]", revisionPHID)
	diffs, err := c.searchDiffs(ctx, form)
	if err != nil {
		return nil, err
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].ID < diffs[j].ID })
	return diffs, nil
}

func (c *Client) searchDiffs(ctx context.Context, form url.Values) ([]Diff, error) {
	var result diffSearchResult
	if err := c.call(ctx, "differential.diff.search", form, &result); err != nil {
		return nil, err
	}

	diffs := make([]Diff, 0, len(result.Data))
	for _, d := range result.Data {
		if d.PHID == "" || d.Fields.RevisionPHID == "" {
			return nil, fmt.Errorf("diff %d is missing required fields", d.ID)
		}
		diff := Diff{
			ID:           d.ID,
			PHID:         d.PHID,
			RevisionPHID: d.Fields.RevisionPHID,
		}
		for _, ref := range d.Fields.Refs {
			if ref.Type == "base" {
				diff.BaseRevision = ref.Identifier
			}
		}
		diffs = append(diffs, diff)
	}
	return diffs, nil
}

// LoadRevision fetches the revision record for a revision PHID.
func (c *Client) LoadRevision(ctx context.Context, revisionPHID string) (*RevisionInfo, error) {
	form := url.Values{}
	form.Set("constraints[phids][0]", revisionPHID)

	var result revisionSearchResult
	if err := c.call(ctx, "differential.revision.search", form, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != 1 {
		return nil, fmt.Errorf("expected exactly one revision for %s, got %d", revisionPHID, len(result.Data))
	}

	r := result.Data[0]
	if r.PHID == "" {
		return nil, fmt.Errorf("revision %d is missing required fields", r.ID)
	}
	return &RevisionInfo{
		ID:    r.ID,
		PHID:  r.PHID,
		Title: r.Fields.Title,
		BugID: r.Fields.BugID,
	}, nil
}

// LoadParents returns the PHIDs of a revision's parent revisions, in the
// order the service reports them.
func (c *Client) LoadParents(ctx context.Context, revisionPHID string) ([]string, error) {
	form := url.Values{}
	form.Set("sourcePHIDs[0]", revisionPHID)
	form.Set("types[0]", "revision.parent")

	var result edgeSearchResult
	if err := c.call(ctx, "edge.search", form, &result); err != nil {
		return nil, err
	}

	parents := make([]string, 0, len(result.Data))
	for _, e := range result.Data {
		parents = append(parents, e.DestinationPHID)
	}
	return parents, nil
}

// RawDiff fetches the unified diff text for a numeric diff id.
func (c *Client) RawDiff(ctx context.Context, diffID int) (string, error) {
	form := url.Values{}
	form.Set("diffID", strconv.Itoa(diffID))

	var raw string
	if err := c.call(ctx, "differential.getrawdiff", form, &raw); err != nil {
		return "", err
	}
	return raw, nil
}

// call performs a Conduit request and decodes the result envelope into out.
func (c *Client) call(ctx context.Context, method string, form url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	form.Set("api.token", c.token)
	requestURL := fmt.Sprintf("%s/api/%s", c.baseURL, method)

	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed with status %d: %s", method, resp.StatusCode, string(body))
	}

	var envelope conduitEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if envelope.ErrorInfo != "" {
		return fmt.Errorf("%s failed: %s (%s)", method, envelope.ErrorInfo, envelope.ErrorCode)
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
