package searchapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePayload = `{
	"items": [
		{"title": "First", "link": "https://a.com/1", "snippet": "one"},
		{"title": "Second", "link": "https://b.com/2", "snippet": "two"}
	],
	"searchInformation": {"totalResults": "1234567", "searchTime": 0.41}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, APIKey: "secret", EngineID: "engine-1"}, nil)
	require.NoError(t, err)
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{APIKey: "k"}, nil)
	require.Error(t, err)
	_, err = New(Config{BaseURL: "https://search.example"}, nil)
	require.Error(t, err)
}

func TestSearchBuildsRequestAndDecodes(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"key":   q.Get("key"),
			"cx":    q.Get("cx"),
			"q":     q.Get("q"),
			"start": q.Get("start"),
			"num":   q.Get("num"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	})

	page, err := c.Search(context.Background(), "best coffee grinder", 11, 10)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"key":   "secret",
		"cx":    "engine-1",
		"q":     "best coffee grinder",
		"start": "11",
		"num":   "10",
	}, gotQuery)

	require.Len(t, page.Items, 2)
	require.Equal(t, "First", page.Items[0].Title)
	require.Equal(t, "https://a.com/1", page.Items[0].URL)
	require.Equal(t, int64(1234567), page.TotalResultsReported)
	require.Positive(t, page.SearchLatency)
}

func TestSearchNormalizesOffsetAndPageSize(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("start"))
		require.Equal(t, "10", r.URL.Query().Get("num"))
		_, _ = w.Write([]byte(`{}`))
	})

	page, err := c.Search(context.Background(), "kw", 0, 0)
	require.NoError(t, err)
	require.Empty(t, page.Items)
}

func TestSearchRateLimited(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), "kw", 1, 10)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestSearchServerError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Search(context.Background(), "kw", 1, 10)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRateLimited)
}

func TestSearchMalformedBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	})

	_, err := c.Search(context.Background(), "kw", 1, 10)
	require.Error(t, err)
}

func TestSearchContextCancellation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, "kw", 1, 10)
	require.Error(t, err)
}
