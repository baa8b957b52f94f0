package polymarket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

const (
	DefaultGammaHost = "https://gamma-api.polymarket.com"
	DefaultDataHost  = "https://data-api.polymarket.com"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// ClientConfig configures a REST client for one Polymarket API host.
type ClientConfig struct {
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// APIError is returned for every non-2xx response. It matches
// domain.ErrNotFound, domain.ErrUnauthorized and domain.ErrRateLimited via
// errors.Is according to StatusCode.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// Is maps status codes onto the domain sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case domain.ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// restClient is the shared GET transport used by the Gamma and Data clients.
// It performs no retries.
type restClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newRESTClient(cfg ClientConfig, defaultBase string) *restClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}
	return &restClient{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// doGet sends a GET request for path with the given query parameters and
// returns the response body.
func (c *restClient) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, path, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus returns an *APIError for non-2xx status codes.
func checkHTTPStatus(statusCode int, path string, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	b := string(body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return &APIError{StatusCode: statusCode, Endpoint: path, Body: b}
}
