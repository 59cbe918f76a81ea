package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/config"
	"helpdesk/internal/domain"
)

// fakeSpace serves total pages of space HELP in batches of the requested limit.
func fakeSpace(t *testing.T, total int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, "HELP", q.Get("spaceKey"))
		assert.Equal(t, "page", q.Get("type"))
		assert.Equal(t, "body.storage,version", q.Get("expand"))

		start, _ := strconv.Atoi(q.Get("start"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		resp := map[string]any{"start": start, "limit": limit}
		var results []map[string]any
		for i := start; i < total && i < start+limit; i++ {
			results = append(results, map[string]any{
				"id":      strconv.Itoa(1000 + i),
				"title":   fmt.Sprintf("Page %d", i),
				"version": map[string]any{"number": 2, "when": "2024-05-01T10:00:00.000Z"},
				"body":    map[string]any{"storage": map[string]any{"value": fmt.Sprintf("<p>Answer %d</p><p>Details.</p>", i)}},
				"_links":  map[string]any{"webui": fmt.Sprintf("/spaces/HELP/pages/%d", 1000+i)},
			})
		}
		resp["results"] = results
		resp["size"] = len(results)
		links := map[string]any{"base": "https://wiki.example.com"}
		if start+limit < total {
			links["next"] = fmt.Sprintf("/rest/api/content?start=%d", start+limit)
		}
		resp["_links"] = links

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*config.ConfluenceConfig)) *Client {
	t.Helper()
	cfg := config.ConfluenceConfig{URL: srv.URL, Username: "bot@example.com", APIKey: "secret", PageSize: 2}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	c.retryDelay = time.Millisecond
	return c
}

func TestListPages_Paginates(t *testing.T) {
	srv := httptest.NewServer(fakeSpace(t, 5))
	defer srv.Close()

	pages, err := newTestClient(t, srv, nil).ListPages(context.Background(), "HELP")
	require.NoError(t, err)
	require.Len(t, pages, 5)

	assert.Equal(t, "1000", pages[0].ID)
	assert.Equal(t, "Page 4", pages[4].Title)
	assert.Equal(t, "https://wiki.example.com/spaces/HELP/pages/1003", pages[3].WebURL)
	assert.Equal(t, 2, pages[0].Version)
}

func TestListPages_MaxPages(t *testing.T) {
	srv := httptest.NewServer(fakeSpace(t, 10))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.ConfluenceConfig) { cfg.MaxPages = 3 })
	pages, err := c.ListPages(context.Background(), "HELP")
	require.NoError(t, err)
	assert.Len(t, pages, 3)
}

func TestClient_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot@example.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fakeSpace(t, 1)(w, r)
	}))
	defer srv.Close()

	pages, err := newTestClient(t, srv, nil).ListPages(context.Background(), "HELP")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestClient_BearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer pat-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fakeSpace(t, 1)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.ConfluenceConfig) {
		cfg.Username = ""
		cfg.APIKey = "pat-token"
	})
	pages, err := c.ListPages(context.Background(), "HELP")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestClient_UnauthorizedIsSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).ListPages(context.Background(), "HELP")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsNotFound(err))
}

func TestClient_NetworkErrorIsSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(fakeSpace(t, 1))
	c := newTestClient(t, srv, nil)
	srv.Close()

	_, err := c.ListPages(context.Background(), "HELP")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestClient_RetriesThrottledResponses(t *testing.T) {
	var calls atomic.Int32
	pages := fakeSpace(t, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		pages(w, r)
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, nil).ListPages(context.Background(), "HELP")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).ListPages(context.Background(), "HELP")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, int32(MaxRetries+1), calls.Load())
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(config.ConfluenceConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
