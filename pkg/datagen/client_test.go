package datagen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc, cfg Config, opts ...Option) (*httptest.Server, *Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg.BaseURL = ts.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	c, err := New(cfg, append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
	require.NoError(t, err)
	return ts, c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATAGEN_API_KEY", "")
	c, err := New(Config{}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, V2, cfg.APIVersion)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Empty(t, cfg.APIKey)
	assert.NotNil(t, c.Auth)
	assert.NotNil(t, c.Tabular)
	assert.NotNil(t, c.Text)
}

func TestNew_NormalizesBaseURL(t *testing.T) {
	c, err := New(Config{BaseURL: "localhost:9000/"}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", c.Config().BaseURL)
}

func TestNew_BaseURLScheme(t *testing.T) {
	cases := map[string]string{
		"HTTPS://api.example.test":   "https://api.example.test",
		"Http://localhost:8000/":     "http://localhost:8000",
		"https://api.example.test/x": "https://api.example.test/x",
		"api.example.test":           "http://api.example.test",
	}
	for in, want := range cases {
		c, err := New(Config{BaseURL: in}, WithLogger(zerolog.Nop()))
		require.NoError(t, err, in)
		assert.Equal(t, want, c.Config().BaseURL, in)
	}

	_, err := New(Config{BaseURL: "ftp://files.example.test"}, WithLogger(zerolog.Nop()))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNew_UnknownVersion(t *testing.T) {
	_, err := New(Config{APIVersion: "v3"}, WithLogger(zerolog.Nop()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNew_NegativeRetries(t *testing.T) {
	_, err := New(Config{MaxRetries: -1}, WithLogger(zerolog.Nop()))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNew_APIKeyFromEnv(t *testing.T) {
	t.Setenv("DATAGEN_API_KEY", "env-key")

	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, `{"id":1,"email":"a@b.c","is_active":true}`)
	}))
	defer ts.Close()

	c, err := New(Config{BaseURL: ts.URL}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "env-key", c.Config().APIKey)

	_, err = c.Auth.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer env-key", gotAuth)
}

func TestNew_ExplicitKeyWinsOverEnv(t *testing.T) {
	t.Setenv("DATAGEN_API_KEY", "env-key")
	c, err := New(Config{APIKey: "explicit"}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "explicit", c.Config().APIKey)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("DATAGEN_API_KEY", "k")
	t.Setenv("DATAGEN_BASE_URL", "https://api.example.test")
	t.Setenv("DATAGEN_API_VERSION", "V1")
	t.Setenv("DATAGEN_TIMEOUT", "7s")

	var buf bytes.Buffer
	c, err := NewFromEnv(context.Background(), WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, V1, cfg.APIVersion)
	assert.Equal(t, "https://api.example.test", cfg.BaseURL)
	assert.Equal(t, 7*time.Second, cfg.Timeout)
	assert.Equal(t, "k", cfg.APIKey)
}

func TestV1_SingleDeprecationWarningAndCallsSucceed(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.WarnLevel)

	var gotPath string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, `{"strategies":["llm","statistical"],"default":"llm"}`)
	}, Config{APIVersion: V1}, WithLogger(logger))

	out, err := c.Tabular.Strategies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llm", "statistical"}, out.Strategies)
	assert.Equal(t, "/api/v1/tabular/strategies", gotPath)

	_, err = c.Tabular.Strategies(context.Background())
	require.NoError(t, err)

	warnings := strings.Count(buf.String(), "deprecated")
	assert.Equal(t, 1, warnings, "log output: %s", buf.String())
}

func TestV2_NoDeprecationWarning(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(Config{APIVersion: V2}, WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "deprecated")
}

func TestWithAPIKey_SharesConfigAndSwapsKey(t *testing.T) {
	var auths []string
	_, anon := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"id":7,"email":"a@b.c","is_active":true}`)
	}, Config{})

	authed := anon.WithAPIKey("session-token")
	assert.Equal(t, anon.Config().BaseURL, authed.Config().BaseURL)
	assert.Equal(t, "session-token", authed.Config().APIKey)
	assert.Equal(t, "test-key", anon.Config().APIKey)

	_, err := authed.Auth.Me(context.Background())
	require.NoError(t, err)
	_, err = anon.Auth.Me(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer session-token", "Bearer test-key"}, auths)
}

func TestRequestHeaders(t *testing.T) {
	var headers http.Header
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		writeJSON(w, http.StatusOK, `{"version":"2.1"}`)
	}, Config{})

	_, err := c.Text.Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", headers.Get("Authorization"))
	assert.NotEmpty(t, headers.Get(HeaderRequestID))
	assert.Equal(t, userAgent, headers.Get("User-Agent"))
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   error
		msg    string
	}{
		{http.StatusUnauthorized, `{"detail":"Invalid token"}`, ErrAuthentication, "Invalid token"},
		{http.StatusForbidden, `{"detail":"Token revoked"}`, ErrAuthentication, "Token revoked"},
		{http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","num_rows"],"msg":"must be positive"}]}`, ErrValidation, "must be positive"},
		{http.StatusConflict, `{"message":"email already registered"}`, ErrValidation, "email already registered"},
		{http.StatusInternalServerError, `boom`, ErrServer, "boom"},
		{http.StatusBadGateway, `{"error":"upstream"}`, ErrServer, "upstream"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}, Config{})

			_, err := c.Auth.Me(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.msg, apiErr.Message)
			assert.Equal(t, "auth.me", apiErr.Op)
		})
	}
}

func TestNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c, err := New(Config{BaseURL: url}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, err = c.Auth.Me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrServer)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "auth.me", netErr.Op)
}

func TestCanceledContext(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Auth.Me(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMalformedBody(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":`)
	}, Config{})

	_, err := c.Auth.Me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
}

func TestNoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		writeJSON(w, http.StatusServiceUnavailable, `{"detail":"busy"}`)
	}, Config{})

	_, err := c.Auth.Me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			writeJSON(w, http.StatusServiceUnavailable, `{"detail":"busy"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id":1,"email":"a@b.c"}`)
	}, Config{MaxRetries: 3})

	u, err := c.Auth.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesResendBody(t *testing.T) {
	var calls atomic.Int32
	var lastBody string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		lastBody = buf.String()
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"valid":true}`)
	}, Config{MaxRetries: 1})

	out, err := c.Auth.ValidateToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.JSONEq(t, `{"token":"tok"}`, lastBody)
}

func TestCompression(t *testing.T) {
	payload := `{"version":"2.1","models":["m1"],"max_samples":500}`

	encoders := map[string]func([]byte) []byte{
		"zstd": func(b []byte) []byte {
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				panic(err)
			}
			defer enc.Close()
			return enc.EncodeAll(b, nil)
		},
		"gzip": func(b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			if _, err := zw.Write(b); err != nil {
				panic(err)
			}
			if err := zw.Close(); err != nil {
				panic(err)
			}
			return buf.Bytes()
		},
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			var accept string
			_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				accept = r.Header.Get("Accept-Encoding")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Content-Encoding", name)
				_, _ = w.Write(encode([]byte(payload)))
			}, Config{Compression: true})

			info, err := c.Text.Info(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "zstd, gzip", accept)
			assert.Equal(t, "2.1", info.Version)
			assert.Equal(t, []string{"m1"}, info.Models)
			assert.Equal(t, 500, info.MaxSamples)
		})
	}
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

type stubTransport struct {
	resp *http.Response
}

func (s stubTransport) RoundTrip(*http.Request) (*http.Response, error) { return s.resp, nil }

func TestCompressionTransport_ClosesUnderlyingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"ok":true}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	raw := &trackedBody{Reader: &buf}
	header := http.Header{}
	header.Set("Content-Encoding", "gzip")
	tr := &compressionTransport{base: stubTransport{resp: &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       raw,
	}}}

	req := httptest.NewRequest(http.MethodGet, "http://example.test/api/v2/text/info", http.NoBody)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Empty(t, resp.Header.Get("Content-Encoding"))

	require.NoError(t, resp.Body.Close())
	assert.True(t, raw.closed)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	again, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, m.requests, again.requests)

	var fail atomic.Bool
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"nope"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"strategies":[]}`)
	}, Config{}, WithMetrics(m))

	_, err = c.Tabular.Strategies(context.Background())
	require.NoError(t, err)
	fail.Store(true)
	_, err = c.Tabular.Strategies(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("tabular.strategies", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("tabular.strategies", "401")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestServerMessage(t *testing.T) {
	assert.Equal(t, "", serverMessage(nil))
	assert.Equal(t, "plain text", serverMessage([]byte("  plain text\n")))
	assert.Equal(t, "42", serverMessage([]byte(`{"detail":42}`)))
	assert.Equal(t, "a; b", serverMessage([]byte(`{"detail":[{"msg":"a"},{"msg":"b"}]}`)))
	assert.Equal(t, `{"other":1}`, serverMessage([]byte(`{"other":1}`)))
}

func TestErrorKindsAreDistinct(t *testing.T) {
	err := &ValidationError{Field: "num_rows", Reason: "must be greater than 0"}
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrServer))
	assert.Equal(t, "invalid request: num_rows must be greater than 0", err.Error())

	apiErr := &APIError{Op: "auth.login", StatusCode: 401, Message: "bad credentials"}
	assert.Equal(t, "auth.login returned status 401: bad credentials", apiErr.Error())
}
