package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response exposes the subset of an HTTP response the service reads.
type Response interface {
	StatusCode() int
	Body() []byte
}

// Client is the minimal HTTP surface used by provider fetchers and the
// metadata enricher.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

type restyClient struct {
	c *resty.Client
}

// NewRestyClient returns a Client backed by resty with the given timeout.
func NewRestyClient(timeout time.Duration) Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &restyClient{c: c}
}

func (r *restyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.c.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
