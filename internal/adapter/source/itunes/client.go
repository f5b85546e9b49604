package itunes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/mmcdole/tunes/internal/domain"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultRetryBackoff = 500 * time.Millisecond
	defaultMaxRedirects = 10
	userAgent           = "Tunes/1.0"
)

var errTooManyRedirects = errors.New("too many redirects")

// statusError carries a non-2xx response through the retrier
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

// retryServerErrors retries 5xx responses only
type retryServerErrors struct{}

func (retryServerErrors) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	var se *statusError
	if errors.As(err, &se) && se.code >= 500 {
		return retrier.Retry
	}
	return retrier.Fail
}

// Client implements domain.AlbumSource for the iTunes RSS feed
type Client struct {
	baseURL    string
	country    string
	httpClient *http.Client
	retrier    *retrier.Retrier
	logger     *slog.Logger

	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration
	maxRedirects int
}

// Option configures a Client
type Option func(*Client)

// WithTimeout bounds each HTTP request
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a 5xx response is retried and the
// first backoff, which doubles on every retry.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

// WithMaxRedirects limits how many redirects are followed
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRedirects = n
		}
	}
}

// NewClient creates a feed client for the given base URL and storefront
func NewClient(baseURL, country string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if country == "" {
		country = "us"
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		country:      country,
		logger:       logger,
		timeout:      defaultTimeout,
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
		maxRedirects: defaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = &http.Client{
		Timeout: c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.maxRedirects {
				return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, len(via))
			}
			return nil
		},
	}
	c.retrier = retrier.New(retrier.ExponentialBackoff(c.maxRetries, c.retryBackoff), retryServerErrors{})
	return c
}

// FeedURL returns the chart URL for limit entries
func (c *Client) FeedURL(limit int) string {
	return fmt.Sprintf("%s/%s/rss/topalbums/limit=%d/json", c.baseURL, c.country, limit)
}

// FetchTopAlbums downloads and maps the chart
func (c *Client) FetchTopAlbums(ctx context.Context, limit int) (domain.FeedPage, error) {
	reqURL := c.FeedURL(limit)

	var body []byte
	attempts := 0
	err := c.retrier.RunCtx(ctx, func(ctx context.Context) error {
		attempts++
		b, err := c.doRequest(ctx, reqURL)
		if err != nil {
			c.logger.Debug("feed request attempt failed", "attempt", attempts, "error", err)
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		translated := c.translateError(ctx, err)
		if ctx.Err() == nil {
			c.logger.Error("feed request failed", "error", translated, "attempts", attempts)
		}
		return domain.FeedPage{}, translated
	}

	resp, err := c.parseResponse(body)
	if err != nil {
		return domain.FeedPage{}, err
	}

	albums, skipped := MapAlbums(resp.Feed.Entry)
	page := domain.FeedPage{Albums: albums, Skipped: skipped}
	if resp.Feed.Updated != nil {
		page.Updated = resp.Feed.Updated.Label
	}

	c.logger.Info("fetched top albums", "count", len(albums), "skipped", skipped, "attempts", attempts)
	return page, nil
}

// doRequest performs one GET and returns the body of a 2xx response
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json, text/javascript")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("feed request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("feed request error", "status", resp.StatusCode, "bodyLen", len(body))
		return nil, &statusError{code: resp.StatusCode}
	}

	return body, nil
}

// parseResponse decodes the feed document
func (c *Client) parseResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return nil, domain.ParseError(err.Error()).WithCause(err)
	}
	return &resp, nil
}

// translateError maps a transport failure onto the album error taxonomy.
// Cancellation of ctx is returned unchanged.
func (c *Client) translateError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var se *statusError
	if errors.As(err, &se) {
		return statusToError(se.code)
	}

	if errors.Is(err, errTooManyRedirects) {
		return domain.NetworkError("Redirect error").WithCause(err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.TimeoutError().WithCause(err)
	}

	return domain.NetworkError(err.Error()).WithCause(err)
}

// statusToError maps an HTTP status to an API error
func statusToError(code int) *domain.AlbumError {
	switch {
	case code == http.StatusBadRequest:
		return domain.APIError(code, "Invalid request")
	case code == http.StatusNotFound:
		return domain.APIError(code, "Resource not found")
	case code >= 400 && code < 500:
		return domain.APIError(code, fmt.Sprintf("Client error: %d", code))
	case code >= 500:
		return domain.APIError(code, fmt.Sprintf("Server error: %d", code))
	default:
		return domain.APIError(code, fmt.Sprintf("Unexpected status: %d", code))
	}
}
