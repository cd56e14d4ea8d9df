// Package network implements the HTTP side of a resumable upload on top of go-retryablehttp.
package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const maxErrorBodySize = 1024

var redactedHeaders = []string{"Authorization", "Proxy-Authorization"}

// Client sends upload requests. Requests are never retried: a resumable upload recovers by
// querying the server offset, not by replaying a transfer.
type Client struct {
	httpClient *retryablehttp.Client
	logger     log.Logger
}

// NewClient creates a Client with the default HTTP client.
func NewClient(logger log.Logger) *Client {
	return NewClientWithHTTPClient(retryhttp.NewClient(logger), logger)
}

// NewClientWithHTTPClient creates a Client on top of httpClient. Its retry policy is replaced.
func NewClientWithHTTPClient(httpClient *retryablehttp.Client, logger log.Logger) *Client {
	httpClient.RetryMax = 0
	httpClient.CheckRetry = createNoRetryFunction(logger)
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Create issues the creation request (POST).
func (c *Client) Create(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.do(ctx, http.MethodPost, url, header, nil, true)
}

// QueryOffset issues the offset request (HEAD).
func (c *Client) QueryOffset(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.do(ctx, http.MethodHead, url, header, nil, true)
}

// SendChunk transfers one chunk (PATCH).
func (c *Client) SendChunk(ctx context.Context, url string, header http.Header, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPatch, url, header, body, false)
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header, body []byte, dumpBody bool) (*Response, error) {
	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	req, err := retryablehttp.NewRequest(method, url, rawBody)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req = req.WithContext(ctx)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		// Add Content-Length header manually because retryablehttp doesn't do it automatically
		req.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
		req.ContentLength = int64(len(body))
	}

	c.logger.Debugf("%s request dump: %s", method, c.dumpRequest(req, dumpBody))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		c.logger.Warnf("error while reading response body: %s", err)
	}
	c.logger.Debugf("%s response: HTTP %d, headers: %v", method, resp.StatusCode, resp.Header)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(respBody),
	}, nil
}

// dumpRequest renders the request for debug logs with credentials redacted.
func (c *Client) dumpRequest(req *retryablehttp.Request, dumpBody bool) string {
	redacted := req.Request.Clone(req.Context())
	redacted.Header = req.Header.Clone()
	for _, key := range redactedHeaders {
		if redacted.Header.Get(key) != "" {
			redacted.Header.Set(key, "[REDACTED]")
		}
	}
	if !dumpBody {
		redacted.Body = nil
	}

	dump, err := httputil.DumpRequest(redacted, dumpBody)
	if err != nil {
		c.logger.Warnf("error while dumping request: %s", err)
	}
	return string(dump)
}

func createNoRetryFunction(logger log.Logger) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, requestErr error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logger.Debugf("CheckRetry: retry=false ; requestErr=%+v", requestErr)
		return false, nil
	}
}
