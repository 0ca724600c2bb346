package dubclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dubctl/internal/api"
	"dubctl/internal/logging"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBody          = 64 << 10
	userAgent             = "dubctl"
	requestIDHeader       = "X-Request-ID"
)

// Client issues requests against one dubbing service base URL.
type Client struct {
	base          *url.URL
	http          *http.Client
	stream        *http.Client
	uploadTimeout time.Duration
	logger        *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for short requests (health, cleanup).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithStreamClient sets the client used for uploads, status streams, and
// downloads. It should not carry a timeout; those requests are bounded by
// their contexts.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.stream = hc
		}
	}
}

// WithRequestTimeout bounds short requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithUploadTimeout bounds the upload request. Zero leaves it to the caller's context.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.uploadTimeout = d
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a client for baseURL. A missing scheme defaults to http.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("dubclient: base url is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("dubclient: parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("dubclient: base url %q has no host", baseURL)
	}
	base.RawQuery = ""
	base.Fragment = ""

	c := &Client{
		base: base,
		http: &http.Client{Timeout: defaultRequestTimeout},
		// No timeout: status streams stay open until a terminal payload.
		stream: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "dubclient")
	return c, nil
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// DownloadURL returns the absolute URL serving a completed job's artifact.
func (c *Client) DownloadURL(jobID string) string {
	return c.endpoint(api.DownloadPath(jobID)).String()
}

// endpoint joins p onto the base URL, keeping any path prefix the base carries.
func (c *Client) endpoint(p string) *url.URL {
	u := *c.base
	raw := strings.TrimRight(c.base.EscapedPath(), "/") + p
	if unescaped, err := url.PathUnescape(raw); err == nil {
		u.Path = unescaped
		u.RawPath = raw
	} else {
		u.Path = raw
		u.RawPath = ""
	}
	return &u
}

// HTTPError reports a non-success response from an endpoint other than upload.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

func newHTTPError(resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{StatusCode: resp.StatusCode, Detail: detailMessage(body)}
}

// detailMessage extracts a readable message from an error body.
func detailMessage(body []byte) string {
	if len(strings.TrimSpace(string(body))) == 0 {
		return ""
	}
	var payload api.ErrorResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message()
}

func (c *Client) decorate(r *http.Request) {
	r.Header.Set("User-Agent", userAgent)
	if id, ok := logging.AttemptIDFromContext(r.Context()); ok {
		r.Header.Set(requestIDHeader, id)
	}
}
