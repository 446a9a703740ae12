package phabricator_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackreview/internal/phabricator"
)

// conduitServer fakes a Conduit endpoint for a single API method.
func conduitServer(t *testing.T, method string, result string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/"+method, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "api-token", r.PostForm.Get("api.token"))
		if check != nil {
			check(r)
		}
		fmt.Fprintf(w, `{"result": %s, "error_code": null, "error_info": null}`, result)
	}))
}

func TestSearchDiffsByPHID(t *testing.T) {
	result := `{"data": [
		{"id": 42, "phid": "PHID-DIFF-abc", "fields": {
			"revisionPHID": "PHID-DREV-xyz",
			"refs": [{"type": "base", "identifier": "abc123"}]
		}}
	]}`
	server := conduitServer(t, "differential.diff.search", result, func(r *http.Request) {
		assert.Equal(t, "PHID-DIFF-abc", r.PostForm.Get("constraints[phids][0]"))
	})
	defer server.Close()

	c := phabricator.NewClient(server.URL, "api-token")
	diffs, err := c.SearchDiffsByPHID(context.Background(), "PHID-DIFF-abc")
	require.NoError(t, err)

	require.Len(t, diffs, 1)
	assert.Equal(t, phabricator.Diff{
		ID:           42,
		PHID:         "PHID-DIFF-abc",
		RevisionPHID: "PHID-DREV-xyz",
		BaseRevision: "abc123",
	}, diffs[0])
}

func TestSearchDiffsByRevisionSortsByID(t *testing.T) {
	result := `{"data": [
		{"id": 12, "phid": "PHID-DIFF-b", "fields": {"revisionPHID": "PHID-DREV-xyz", "refs": []}},
		{"id": 10, "phid": "PHID-DIFF-a", "fields": {"revisionPHID": "PHID-DREV-xyz", "refs": []}}
	]}`
	server := conduitServer(t, "differential.diff.search", result, func(r *http.Request) {
		assert.Equal(t, "PHID-DREV-xyz", r.PostForm.Get("constraints[revisionPHIDs][0]"))
	})
	defer server.Close()

	c := phabricator.NewClient(server.URL, "api-token")
	diffs, err := c.SearchDiffsByRevision(context.Background(), "PHID-DREV-xyz")
	require.NoError(t, err)

	require.Len(t, diffs, 2)
	assert.Equal(t, 10, diffs[0].ID)
	assert.Equal(t, 12, diffs[1].ID)
	// No base ref recorded on these diffs.
	assert.Equal(t, "", diffs[0].BaseRevision)
}

func TestSearchDiffsMissingRequiredFields(t *testing.T) {
	result := `{"data": [{"id": 42, "phid": "PHID-DIFF-abc", "fields": {"refs": []}}]}`
	server := conduitServer(t, "differential.diff.search", result, nil)
	defer server.Close()

	c := phabricator.NewClient(server.URL, "api-token")
	_, err := c.SearchDiffsByPHID(context.Background(), "PHID-DIFF-abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required fields")
}

func TestLoadRevision(t *testing.T) {
	result := `{"data": [
		{"id": 1234, "phid": "PHID-DREV-xyz", "fields": {
			"title": "Fix the frobnicator",
			"bugzilla.bug-id": "99"
		}}
	]}`
	server := conduitServer(t, "differential.revision.search", result, nil)
	defer server.Close()

	c := phabricator.NewClient(server.URL, "api-token")
	info, err := c.LoadRevision(context.Background(), "PHID-DREV-xyz")
	require.NoError(t, err)

	assert.Equal(t, 1234, info.ID)
	assert.Equal(t, "Fix the frobnicator", info.Title)
	assert.Equal(t, "99", info.BugID)
}

func TestLoadParents(t *testing.T) {
	result := `{"data": [
		{"sourcePHID": "PHID-DREV-xyz", "edgeType": "revision.parent", "destinationPHID": "PHID-DREV-p1"},
		{"sourcePHID": "PHID-DREV-xyz", "edgeType": "revision.parent", "destinationPHID": "PHID-DREV-p2"}
	]}`
	server := conduitServer(t, "edge.search", result, func(r *http.Request) {
		assert.Equal(t, "PHID-DREV-xyz", r.PostForm.Get("sourcePHIDs[0]"))
		assert.Equal(t, "revision.parent", r.PostForm.Get("types[0]"))
	})
	defer server.Close()

	c := phabricator.NewClient(server.URL, "api-token")
	parents, err := c.LoadParents(context.Background(), "PHID-DREV-xyz")
	require.NoError(t, err)

	assert.Equal(t, []string{"PHID-DREV-p1", "PHID-DREV-p2"}, parents)
}

func TestRawDiff(t *testing.T) {
	server := conduitServer(t, "differential.getrawdiff", `"--- a/f.py\n+++ b/f.py\n"`, func(r *http.Request) {
		assert.Equal(t, "42", r.PostForm.Get("diffID"))
	})
	defer server.Close()

	c := phabricator.NewClient(server.URL, "api-token")
	raw, err := c.RawDiff(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "--- a/f.py\n+++ b/f.py\n", raw)
}

func TestConduitErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result": null, "error_code": "ERR-CONDUIT-CALL", "error_info": "API token invalid"}`)
	}))
	defer server.Close()

	c := phabricator.NewClient(server.URL, "bad-token")
	_, err := c.RawDiff(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API token invalid")
	assert.Contains(t, err.Error(), "ERR-CONDUIT-CALL")
}

func TestHTTPErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := phabricator.NewClient(server.URL, "api-token")
	_, err := c.LoadParents(context.Background(), "PHID-DREV-xyz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHost(t *testing.T) {
	c := phabricator.NewClient("https://phabricator.example.com/", "api-token")
	assert.Equal(t, "phabricator.example.com", c.Host())
}
