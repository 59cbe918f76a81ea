package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"helpdesk/config"
	"helpdesk/internal/domain"
	"helpdesk/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the number of pages requested per call.
	DefaultPageSize = 50

	// MaxRetries is the maximum number of retries for throttled or unavailable responses.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries.
	RetryDelay = time.Second
)

// Page is a Confluence page with its storage-format body.
type Page struct {
	ID      string
	Title   string
	Body    string
	WebURL  string
	Version int
	When    string
}

// Client lists pages of a Confluence space over the REST API.
type Client struct {
	baseURL    string
	username   string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	pageSize   int
	maxPages   int
	retryDelay time.Duration
}

// NewClient creates a client. A username selects basic auth with the API
// key as password; without one the key is sent as a bearer token.
func NewClient(cfg config.ConfluenceConfig) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, fmt.Errorf("%w: confluence url is required", domain.ErrInvalidConfig)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%w: confluence url: %v", domain.ErrInvalidConfig, err)
	}

	timeout := DefaultTimeout
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}

	var hc *http.Client
	if cfg.Username == "" && cfg.APIKey != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey})
		hc = oauth2.NewClient(context.Background(), ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = timeout

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Client{
		baseURL:    base,
		username:   cfg.Username,
		apiKey:     cfg.APIKey,
		http:       hc,
		limiter:    rate.NewLimiter(limit, 1),
		pageSize:   pageSize,
		maxPages:   cfg.MaxPages,
		retryDelay: RetryDelay,
	}, nil
}

type contentResponse struct {
	Results []contentResult `json:"results"`
	Start   int             `json:"start"`
	Limit   int             `json:"limit"`
	Size    int             `json:"size"`
	Links   struct {
		Base string `json:"base"`
		Next string `json:"next"`
	} `json:"_links"`
}

type contentResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version struct {
		Number int    `json:"number"`
		When   string `json:"when"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// ListPages returns every current page of the space, following pagination.
func (c *Client) ListPages(ctx context.Context, spaceKey string) ([]Page, error) {
	var pages []Page
	start := 0

	for {
		resp, err := c.fetch(ctx, spaceKey, start)
		if err != nil {
			return nil, err
		}

		base := resp.Links.Base
		if base == "" {
			base = c.baseURL
		}
		for _, r := range resp.Results {
			pages = append(pages, Page{
				ID:      r.ID,
				Title:   r.Title,
				Body:    r.Body.Storage.Value,
				WebURL:  base + r.Links.WebUI,
				Version: r.Version.Number,
				When:    r.Version.When,
			})
			if c.maxPages > 0 && len(pages) >= c.maxPages {
				return pages, nil
			}
		}

		if resp.Links.Next == "" || len(resp.Results) == 0 {
			break
		}
		start += len(resp.Results)
	}

	logger.Debug("confluence: fetched %d pages from space %s", len(pages), spaceKey)
	return pages, nil
}

func (c *Client) pageURL(spaceKey string, start int) string {
	q := url.Values{}
	q.Set("spaceKey", spaceKey)
	q.Set("type", "page")
	q.Set("status", "current")
	q.Set("expand", "body.storage,version")
	q.Set("start", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(c.pageSize))
	return c.baseURL + "/rest/api/content?" + q.Encode()
}

// fetch gets one result page, retrying throttled and unavailable responses.
func (c *Client) fetch(ctx context.Context, spaceKey string, start int) (*contentResponse, error) {
	u := c.pageURL(spaceKey, start)
	delay := c.retryDelay

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", domain.ErrSourceUnavailable, err)
		}

		resp, err := c.get(ctx, u)
		if err == nil {
			return resp, nil
		}

		var apiErr *APIError
		if attempt >= MaxRetries || !errors.As(err, &apiErr) || !retryable(apiErr.StatusCode) {
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}

		logger.Debug("confluence: %v, retrying in %s", err, delay)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *Client) get(ctx context.Context, u string) (*contentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, URL: u}
	}

	var out contentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}
