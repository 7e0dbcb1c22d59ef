package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/cache"
	"github.com/veritrail/veritrail/internal/model"
)

func newTestClient(t *testing.T, baseURL string, c cache.Cache) *Client {
	t.Helper()
	client := NewClient(model.RetrievalConfig{
		BaseURL:           baseURL,
		RequestsPerSecond: 100,
		Burst:             100,
		Timeout:           5 * time.Second,
	}, c, zap.NewNop())
	client.sleepFunc = func(time.Duration) {}
	return client
}

func TestSearch_ParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "vaccine study", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"url":"https://nature.com/a","title":"Study","snippet":"Findings","published_at":"2024-03-01T10:00:00Z","score":90},
			{"url":"https://example.com/b","title":"Repost","snippet":"Copy","score":40},
			{"url":"","title":"no url","snippet":"skipped"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	items, err := client.Search(context.Background(), "vaccine study", 5)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "https://nature.com/a", items[0].URL)
	assert.Equal(t, "Study", items[0].Title)
	assert.Equal(t, 90, items[0].DomainScore)
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, 2024, items[0].PublishedAt.Year())

	assert.Equal(t, "https://example.com/b", items[1].URL)
	assert.Nil(t, items[1].PublishedAt)
}

func TestSearch_EmptyQuery(t *testing.T) {
	client := newTestClient(t, "http://unused", nil)
	_, err := client.Search(context.Background(), "", 5)
	assert.Error(t, err)
}

func TestSearch_ClampsScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"url":"https://a.com","score":150},
			{"url":"https://b.com","score":-20}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	items, err := client.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 100, items[0].DomainScore)
	assert.Equal(t, 0, items[1].DomainScore)
}

func TestSearch_RetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"results":[{"url":"https://a.com","title":"ok"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	items, err := client.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearch_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	_, err := client.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
}

func TestSearch_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad query"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	_, err := client.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_UsesCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"results":[{"url":"https://a.com","title":"cached"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, cache.NewMemoryCache(time.Minute, time.Minute))

	first, err := client.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	second, err := client.Search(context.Background(), "q", 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_SendsAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	client := NewClient(model.RetrievalConfig{
		BaseURL:           server.URL,
		APIKey:            "secret",
		RequestsPerSecond: 100,
		Burst:             100,
	}, nil, zap.NewNop())

	_, err := client.Search(context.Background(), "q", 1)
	require.NoError(t, err)
}

func TestLimiter_PerHost(t *testing.T) {
	l := NewLimiter(1000, 1000)
	a := l.getLimiter("a.com")
	b := l.getLimiter("b.com")
	assert.NotSame(t, a, b)
	assert.Same(t, a, l.getLimiter("a.com"))
}
