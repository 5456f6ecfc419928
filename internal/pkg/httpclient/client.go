package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for server-to-server calls to payment gateways.
type Client struct {
	r *resty.Client
}

// New creates a new HTTP client with sensible defaults.
func New() *Client {
	r := resty.New().
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json")

	return &Client{r: r}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithHeader sets a custom header.
func (c *Client) WithHeader(key, value string) *Client {
	c.r.SetHeader(key, value)
	return c
}

// WithRetry enables resty's retry on transport errors. Gateway queries are
// read-only, so retrying them is safe.
func (c *Client) WithRetry(count int, wait time.Duration) *Client {
	c.r.SetRetryCount(count).SetRetryWaitTime(wait)
	return c
}

// PostJSON sends body as JSON and returns the response body. Non-2xx answers
// are returned as errors.
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}) ([]byte, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, err
	}
	return checked(resp)
}

// PostForm sends a form-encoded POST.
func (c *Client) PostForm(ctx context.Context, url string, data map[string]string) ([]byte, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetFormData(data).
		Post(url)
	if err != nil {
		return nil, err
	}
	return checked(resp)
}

func checked(resp *resty.Response) ([]byte, error) {
	if resp.IsError() {
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode(), resp.Request.URL)
	}
	return resp.Body(), nil
}
