// Package httpapi binds declarative endpoints to routine callers over HTTP.
//
// A non-2xx answer is a recoverable failure carrying the response body.
// A request that never gets an answer is returned as a plain error, which
// the engine treats as fatal for the invocation.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/routine"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

var placeholder = regexp.MustCompile(`\{(\d+)\}`)

// Client issues endpoint calls.
type Client struct {
	// BaseURL is prepended to endpoint URLs without a scheme.
	BaseURL string

	// HTTP is the underlying client. nil means http.DefaultClient.
	HTTP *http.Client

	// Header is added to every request.
	Header http.Header
}

// NewClient creates a Client with a request timeout. A zero timeout
// disables it.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Caller returns a routine.Caller for ep.
func (c *Client) Caller(ep ir.EndpointDef) (routine.Caller, error) {
	method := strings.ToUpper(ep.Method)
	if !ir.ValidMethods[method] {
		return nil, fmt.Errorf("endpoint %s: unsupported method %q", ep.URL, ep.Method)
	}
	if ep.URL == "" {
		return nil, fmt.Errorf("endpoint: url is required")
	}

	return func(ctx context.Context, payload ...ir.Value) (*routine.Response, error) {
		return c.do(ctx, method, ep, payload)
	}, nil
}

func (c *Client) do(ctx context.Context, method string, ep ir.EndpointDef, payload []ir.Value) (*routine.Response, error) {
	target, err := c.resolveURL(ep.URL, payload)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if ep.BodyArg >= 0 && ep.BodyArg < len(payload) {
		data, err := ir.MarshalCanonical(payload[ep.BodyArg])
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", method, target, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, target, err)
	}

	out := &routine.Response{Status: resp.StatusCode, Data: decodeBody(raw)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &routine.ResponseError{
			Response: out,
			Err:      fmt.Errorf("%s %s: %s", method, target, resp.Status),
		}
	}
	return out, nil
}

// resolveURL substitutes {n} placeholders with payload scalars and applies
// BaseURL to relative URLs.
func (c *Client) resolveURL(pattern string, payload []ir.Value) (string, error) {
	var missing error
	resolved := placeholder.ReplaceAllStringFunc(pattern, func(m string) string {
		idx, _ := strconv.Atoi(m[1 : len(m)-1])
		if idx >= len(payload) {
			if missing == nil {
				missing = fmt.Errorf("url %s: placeholder %s has no argument (got %d)", pattern, m, len(payload))
			}
			return m
		}
		return url.PathEscape(scalarString(payload[idx]))
	})
	if missing != nil {
		return "", missing
	}

	if strings.Contains(resolved, "://") || c.BaseURL == "" {
		return resolved, nil
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(resolved, "/"), nil
}

func scalarString(v ir.Value) string {
	switch val := v.(type) {
	case ir.String:
		return string(val)
	case ir.Int:
		return strconv.FormatInt(int64(val), 10)
	case ir.Float:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case ir.Bool:
		return strconv.FormatBool(bool(val))
	case nil, ir.Null:
		return ""
	default:
		data, err := ir.MarshalCanonical(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// decodeBody decodes JSON bodies. An empty body is null; anything that is
// not JSON, such as an HTML error page, is kept as a string.
func decodeBody(raw []byte) ir.Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ir.Null{}
	}
	v, err := ir.UnmarshalValue(trimmed)
	if err != nil {
		return ir.String(raw)
	}
	return v
}
