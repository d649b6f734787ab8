package douyin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"dyfav/pkg/config"
	errs "dyfav/pkg/errors"
	"dyfav/pkg/logger"
	"dyfav/pkg/retry"
)

// MaxMediaSize caps a single downloaded body
const MaxMediaSize = 1 << 30

// Client fetches media files from the platform CDN
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	policy     *retry.Policy
	logger     logger.Logger
}

// NewClient creates a media client from the download section of the
// configuration. A nil policy means a single attempt per request.
func NewClient(cfg config.DownloadConfig, policy *retry.Policy, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if policy == nil {
		policy = retry.SingleAttempt()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	referer := cfg.Referer
	if referer == "" {
		referer = config.DefaultReferer
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent":      ua,
			"Referer":         referer,
			"Accept":          "*/*",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		},
		policy: policy,
		logger: log,
	}
}

// SetHTTPClient replaces the underlying HTTP client, keeping the platform
// headers and retry policy
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Fetch downloads the body at url under the client's retry policy. Any
// status other than 200 is an error and no bytes are returned.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		return c.fetchOnce(ctx, url)
	})
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "build request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithFields("Media request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "request "+url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		logger.LogFetch(c.logger, url, resp.StatusCode, 0, time.Since(start))
		return nil, errs.FromStatus(resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaSize+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "read body of "+url)
	}
	if len(data) > MaxMediaSize {
		return nil, errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("body of %s exceeds %d bytes", url, MaxMediaSize))
	}
	if resp.ContentLength > 0 && int64(len(data)) != resp.ContentLength {
		return nil, errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("short body for %s: got %d of %d bytes", url, len(data), resp.ContentLength))
	}

	logger.LogFetch(c.logger, url, resp.StatusCode, len(data), time.Since(start))
	return data, nil
}
