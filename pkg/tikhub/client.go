// Package tikhub implements the client side of the TikHub aggregation API:
// credential pooling with quota-based rotation, multi-host failover, and
// media byte fetching.
package tikhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/ratelimit"
)

// apiConcurrency caps simultaneous in-flight API page requests per client.
// Independent of the download engine's concurrency limit.
const apiConcurrency = 5

// envelope is the uniform TikHub response wrapper
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is a TikHub API client. It is safe for concurrent use.
type Client struct {
	apiClient   *http.Client
	mediaClient *http.Client
	baseURLs    []string
	pool        *Pool
	sem         *semaphore.Weighted
	limiter     ratelimit.Limiter
	logger      logger.Logger
}

// NewClient creates a TikHub client. mediaTimeout bounds media byte fetches,
// which may be much larger than API pages.
func NewClient(cfg *config.APIConfig, mediaTimeout time.Duration, pool *Pool, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 120
	}

	return &Client{
		apiClient:   &http.Client{Timeout: cfg.Timeout},
		mediaClient: &http.Client{Timeout: mediaTimeout},
		baseURLs:    cfg.BaseURLs,
		pool:        pool,
		sem:         semaphore.NewWeighted(apiConcurrency),
		limiter:     ratelimit.NewTokenBucket(rpm, time.Minute),
		logger:      log,
	}
}

// Pool returns the client's credential pool.
func (c *Client) Pool() *Pool {
	return c.pool
}

// GetJSON performs an authenticated GET against the API and returns the
// envelope's data payload. On HTTP 402 the current credential is marked
// exhausted and the same request is retried with the next one; when no
// credential remains a quota error is returned. Non-402 failures are retried
// across the configured base URLs before giving up.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, &Error{Type: ErrorTypeNetwork, Message: err.Error()}
	}
	defer c.sem.Release(1)

	if !c.limiter.Allow() {
		c.limiter.Wait()
	}

	for {
		key, err := c.pool.Current()
		if err != nil {
			return nil, &Error{
				Type:    ErrorTypeQuota,
				Message: err.Error(),
				Code:    http.StatusPaymentRequired,
			}
		}

		data, rotate, err := c.tryBaseURLs(ctx, endpoint, params, key)
		if err == nil && !rotate {
			return data, nil
		}

		if rotate {
			c.pool.MarkExhausted(key)
			c.logger.WarnWithFields("API key quota exhausted, rotating", map[string]interface{}{
				"key_prefix": keyPreview(key),
				"remaining":  c.pool.Remaining(),
			})
			continue
		}

		return nil, err
	}
}

// tryBaseURLs attempts the request against each configured base URL in order.
// rotate is true when the upstream answered 402 and the caller should switch
// credentials.
func (c *Client) tryBaseURLs(ctx context.Context, endpoint string, params url.Values, key string) (json.RawMessage, bool, error) {
	var lastErr error

	for _, base := range c.baseURLs {
		reqURL := strings.TrimRight(base, "/") + endpoint
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, false, &Error{Type: ErrorTypeNetwork, Message: err.Error()}
		}
		req.Header.Set("Authorization", "Bearer "+key)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.apiClient.Do(req)
		if err != nil {
			lastErr = &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("request to %s failed: %v", base, err)}
			c.logger.WarnWithFields("API request failed", map[string]interface{}{
				"base_url": base,
				"endpoint": endpoint,
				"error":    err.Error(),
			})
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.logger.DebugWithFields("API request completed", map[string]interface{}{
			"base_url": base,
			"endpoint": endpoint,
			"status":   resp.StatusCode,
			"duration": time.Since(start),
		})

		if resp.StatusCode == http.StatusPaymentRequired {
			return nil, true, nil
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = &Error{
				Type:    ErrorTypeUpstream,
				Message: fmt.Sprintf("unexpected status from %s", base),
				Code:    resp.StatusCode,
			}
			continue
		}

		if readErr != nil {
			lastErr = &Error{Type: ErrorTypeNetwork, Message: readErr.Error(), Code: resp.StatusCode}
			continue
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			lastErr = &Error{Type: ErrorTypeParsing, Message: err.Error(), Code: resp.StatusCode}
			continue
		}

		if env.Code != http.StatusOK {
			lastErr = &Error{
				Type:    ErrorTypeUpstream,
				Message: env.Message,
				Code:    env.Code,
			}
			continue
		}

		return env.Data, false, nil
	}

	if lastErr == nil {
		lastErr = &Error{Type: ErrorTypeUpstream, Message: "no base URL configured"}
	}
	return nil, false, lastErr
}

// FetchBytes downloads the full contents of a media URL. No API credential is
// attached; media URLs are CDN links that carry their own auth tokens.
func (c *Client) FetchBytes(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, &Error{Type: ErrorTypeNetwork, Message: err.Error()}
	}

	resp, err := c.mediaClient.Do(req)
	if err != nil {
		return nil, &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("download failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Type:    ErrorTypeUpstream,
			Message: "unexpected status fetching media",
			Code:    resp.StatusCode,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Type: ErrorTypeNetwork, Message: err.Error(), Code: resp.StatusCode}
	}
	return data, nil
}

// ResolveRedirect follows redirects for a short link and returns the final
// URL.
func (c *Client) ResolveRedirect(ctx context.Context, shortURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shortURL, nil)
	if err != nil {
		return "", &Error{Type: ErrorTypeNetwork, Message: err.Error()}
	}

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return "", &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("resolving %s failed: %v", shortURL, err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.Request.URL.String(), nil
}

// keyPreview returns a short, log-safe prefix of an API key.
func keyPreview(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
