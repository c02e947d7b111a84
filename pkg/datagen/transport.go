package datagen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	HeaderRequestID = "X-Request-ID"
	userAgent       = "datagen-go"
)

func newRestyClient(cfg Config, base http.RoundTripper) *resty.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil
	// Hand the final response back unchanged so status mapping happens in one place.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if base != nil {
		rc.HTTPClient.Transport = base
	}

	var rt http.RoundTripper = &retryablehttp.RoundTripper{Client: rc}
	if cfg.Compression {
		rt = &compressionTransport{base: rt}
	}

	return resty.NewWithClient(&http.Client{Transport: rt}).
		SetBaseURL(fmt.Sprintf("%s/api/%s", cfg.BaseURL, cfg.APIVersion)).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if r.Header.Get(HeaderRequestID) == "" {
				r.SetHeader(HeaderRequestID, uuid.NewString())
			}
			return nil
		})
}

// compressionTransport negotiates zstd or gzip encoded responses and decodes them.
type compressionTransport struct {
	base http.RoundTripper
}

func (t *compressionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "zstd, gzip")
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	raw := resp.Body
	var body io.ReadCloser
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "zstd":
		dec, err := zstd.NewReader(raw)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("zstd: failed to create reader: %w", err)
		}
		body = &decodedBody{Reader: dec, close: func() error { dec.Close(); return raw.Close() }}
	case "gzip":
		dec, err := gzip.NewReader(raw)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("gzip: failed to create reader: %w", err)
		}
		body = &decodedBody{Reader: dec, close: func() error { dec.Close(); return raw.Close() }}
	default:
		return resp, nil
	}

	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type decodedBody struct {
	io.Reader
	close func() error
}

func (b *decodedBody) Close() error { return b.close() }

// call describes one API request.
type call struct {
	op     string
	method string
	path   string
	body   any
	query  map[string]string
	accept string
}

// execute sends the request and maps failures onto the error taxonomy.
func (c *Client) execute(ctx context.Context, cl call) (*resty.Response, error) {
	r := c.http.R().SetContext(ctx)
	if c.cfg.APIKey != "" {
		r.SetAuthToken(c.cfg.APIKey)
	}
	if cl.body != nil {
		r.SetBody(cl.body)
	}
	if len(cl.query) > 0 {
		r.SetQueryParams(cl.query)
	}
	if cl.accept != "" {
		r.SetHeader("Accept", cl.accept)
	}

	c.log.Debug().Str("op", cl.op).Str("method", cl.method).Str("path", cl.path).Msg("sending request")

	start := time.Now()
	resp, err := r.Execute(cl.method, cl.path)
	if err != nil {
		c.metrics.observe(cl.op, 0, time.Since(start))
		c.log.Error().Err(err).Str("op", cl.op).Str("path", cl.path).Msg("request failed")
		return nil, &NetworkError{Op: cl.op, Err: err}
	}
	c.metrics.observe(cl.op, resp.StatusCode(), time.Since(start))

	if !resp.IsSuccess() {
		c.log.Error().
			Int("status", resp.StatusCode()).
			Str("body", resp.String()).
			Str("op", cl.op).
			Str("path", cl.path).
			Msg("non-2xx response")
		return nil, &APIError{
			Op:         cl.op,
			StatusCode: resp.StatusCode(),
			Message:    serverMessage(resp.Body()),
			Body:       resp.String(),
		}
	}
	return resp, nil
}

func doJSON[T any](ctx context.Context, c *Client, cl call) (T, error) {
	var out T
	resp, err := c.execute(ctx, cl)
	if err != nil {
		return out, err
	}
	if err := sonic.Unmarshal(resp.Body(), &out); err != nil {
		c.log.Error().Err(err).Str("op", cl.op).Str("body", resp.String()).Msg("malformed response body")
		var zero T
		return zero, fmt.Errorf("%w: decode %s response: %w", ErrServer, cl.op, err)
	}
	return out, nil
}

func getJSON[T any](ctx context.Context, c *Client, op, path string, query map[string]string) (T, error) {
	return doJSON[T](ctx, c, call{op: op, method: http.MethodGet, path: path, query: query})
}

func postJSON[T any](ctx context.Context, c *Client, op, path string, body any) (T, error) {
	return doJSON[T](ctx, c, call{op: op, method: http.MethodPost, path: path, body: body})
}
