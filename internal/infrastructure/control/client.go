package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/powerpanel/domain"
	"github.com/fastygo/powerpanel/internal/config"
)

const apiSecretHeader = "x-api-secret"

// Option customizes a Client.
type Option func(c *Client)

// WithDial overrides how connections to the control backend are opened.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) {
		c.http.Dial = dial
	}
}

// Client talks to the machine control backend.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	secret  string
	timeout time.Duration
}

// NewClient creates a control backend client from configuration.
func NewClient(cfg config.ControlConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		http: &fasthttp.Client{
			Name:                "powerpanel",
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: cfg.URL,
		secret:  cfg.APISecret,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the machines known to the backend. A body that is not a JSON
// array yields an empty list.
func (c *Client) List(ctx context.Context) ([]domain.Computer, error) {
	body, err := c.do(ctx, fasthttp.MethodGet, "/computers")
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "invalid computers payload", err)
	}

	var computers []domain.Computer
	if err := json.Unmarshal(raw, &computers); err != nil {
		return []domain.Computer{}, nil
	}
	if computers == nil {
		computers = []domain.Computer{}
	}
	return computers, nil
}

// Shutdown asks the backend to power off the named machine.
func (c *Client) Shutdown(ctx context.Context, name string) error {
	_, err := c.do(ctx, fasthttp.MethodPost, "/shutdown/"+url.PathEscape(name))
	return err
}

// ShutdownAll asks the backend to power off every machine.
func (c *Client) ShutdownAll(ctx context.Context) error {
	_, err := c.do(ctx, fasthttp.MethodPost, "/shutdown-all")
	return err
}

// Remove deletes the named machine from the backend.
func (c *Client) Remove(ctx context.Context, name string) error {
	_, err := c.do(ctx, fasthttp.MethodDelete, "/remove/"+url.PathEscape(name))
	return err
}

// Ping reports whether the backend answers the listing endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, fasthttp.MethodGet, "/computers")
	return err
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set(apiSecretHeader, c.secret)

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, domain.WrapError(domain.ErrCodeUnavailable, domain.ErrBackendUnavailable.Message, context.DeadlineExceeded)
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, domain.ErrBackendUnavailable.Message, err)
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusNotFound:
		return nil, domain.WrapError(domain.ErrCodeNotFound, domain.ErrComputerNotFound.Message,
			fmt.Errorf("%s %s: status %d", method, path, status))
	case status < 200 || status >= 300:
		return nil, domain.WrapError(domain.ErrCodeUnavailable, domain.ErrBackendUnavailable.Message,
			fmt.Errorf("%s %s: HTTP error! status: %d", method, path, status))
	}

	return append([]byte(nil), resp.Body()...), nil
}
