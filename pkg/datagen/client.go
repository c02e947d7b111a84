package datagen

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/datagen/internal/config"
)

// APIVersion selects the versioned path prefix of the API.
type APIVersion string

const (
	// V1 is still served but deprecated.
	V1 APIVersion = "v1"
	V2 APIVersion = "v2"
)

const (
	DefaultBaseURL    = "http://localhost:8000"
	DefaultAPIVersion = V2
	DefaultTimeout    = 60 * time.Second
)

// Config holds everything a Client needs to reach the API.
type Config struct {
	APIVersion APIVersion
	// APIKey is sent as a bearer token. When empty, DATAGEN_API_KEY is used.
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// MaxRetries enables retries of failed requests. Zero, the default, sends every request once.
	MaxRetries int
	// Compression advertises zstd and gzip response encodings.
	Compression bool
}

// Option customizes a Client beyond its Config.
type Option func(*options)

type options struct {
	logger    *zerolog.Logger
	metrics   *Metrics
	transport http.RoundTripper
}

// WithLogger replaces the global zerolog logger for this client.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTransport sets the round tripper beneath retries and decompression.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// Client is the entry point to the API. It is safe for concurrent use.
type Client struct {
	cfg     Config
	log     zerolog.Logger
	http    *resty.Client
	metrics *Metrics

	Auth    *AuthClient
	Tabular *TabularClient
	Text    *TextClient
}

// New builds a client. A V1 config logs one deprecation warning and otherwise works normally.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}

	c := &Client{
		cfg:     cfg,
		log:     logger,
		http:    newRestyClient(cfg, o.transport),
		metrics: o.metrics,
	}
	c.bind()

	if cfg.APIVersion == V1 {
		c.log.Warn().
			Str("api_version", string(V1)).
			Str("current", string(V2)).
			Msg("API version v1 is deprecated and will be removed; switch to v2")
	}

	c.log.Debug().
		Str("base_url", c.http.BaseURL).
		Bool("authenticated", cfg.APIKey != "").
		Int("max_retries", cfg.MaxRetries).
		Msg("datagen client initialized")

	return c, nil
}

// NewFromEnv builds a client from DATAGEN_* environment variables.
func NewFromEnv(ctx context.Context, opts ...Option) (*Client, error) {
	env, err := config.LoadClientEnv(ctx)
	if err != nil {
		return nil, err
	}
	return New(ConfigFromEnv(env), opts...)
}

// ConfigFromEnv converts loaded environment settings into a Config.
func ConfigFromEnv(env *config.ClientEnvConfig) Config {
	return Config{
		APIVersion:  APIVersion(strings.ToLower(env.APIVersion)),
		APIKey:      env.APIKey,
		BaseURL:     env.BaseURL,
		Timeout:     env.Timeout,
		MaxRetries:  env.MaxRetries,
		Compression: env.Compression,
	}
}

func normalizeConfig(cfg Config) (Config, error) {
	switch cfg.APIVersion {
	case "":
		cfg.APIVersion = DefaultAPIVersion
	case V1, V2:
	default:
		return Config{}, &ValidationError{Field: "api_version", Reason: fmt.Sprintf("must be v1 or v2, got %q", cfg.APIVersion)}
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(config.EnvAPIKey)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	scheme, rest, hasScheme := strings.Cut(cfg.BaseURL, "://")
	switch {
	case !hasScheme:
		cfg.BaseURL = "http://" + cfg.BaseURL
	case strings.EqualFold(scheme, "http"), strings.EqualFold(scheme, "https"):
		cfg.BaseURL = strings.ToLower(scheme) + "://" + rest
	default:
		return Config{}, &ValidationError{Field: "base_url", Reason: fmt.Sprintf("must use http or https, got %q", scheme)}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		return Config{}, &ValidationError{Field: "max_retries", Reason: "must not be negative"}
	}
	return cfg, nil
}

func (c *Client) bind() {
	c.Auth = &AuthClient{c: c}
	c.Tabular = &TabularClient{c: c}
	c.Text = &TextClient{c: c}
}

// WithAPIKey returns a client that shares this client's connection pool and settings
// but authenticates with key, typically a token returned by Auth.Login.
func (c *Client) WithAPIKey(key string) *Client {
	cp := &Client{
		cfg:     c.cfg,
		log:     c.log,
		http:    c.http,
		metrics: c.metrics,
	}
	cp.cfg.APIKey = key
	cp.bind()
	return cp
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}
