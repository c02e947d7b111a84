package datagen

import (
	"time"

	"github.com/spf13/cast"
)

// ----------------------------- Auth Types -----------------------------

// AuthToken is a bearer credential issued by the API.
type AuthToken struct {
	Value     string     `json:"token"`
	ID        int64      `json:"id"`
	Revoked   bool       `json:"revoked"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Expired reports whether the token has an expiry that lies before now.
func (t AuthToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	TokenID     int64      `json:"token_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type tokenBody struct {
	Token string `json:"token"`
}

// User is the account behind an API key.
type User struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// TokenValidation is the result of checking a token with the server.
type TokenValidation struct {
	Valid     bool       `json:"valid"`
	UserID    int64      `json:"user_id,omitempty"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// ListTokensOptions filters ListTokens.
type ListTokensOptions struct {
	IncludeRevoked bool
	IncludeExpired bool
}

type TokenList struct {
	Tokens []AuthToken `json:"tokens"`
	Total  int         `json:"total"`
}

type RevokeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	TokenID int64  `json:"token_id,omitempty"`
}

// ----------------------------- Tabular Types -----------------------------

// TabularDataset is the json rendering of a generated table.
type TabularDataset struct {
	Data     []map[string]any `json:"data"`
	Metadata map[string]any   `json:"metadata"`
}

// RowCount prefers the server reported row count and falls back to the rows received.
func (d *TabularDataset) RowCount() int {
	if n, err := cast.ToIntE(d.Metadata["num_rows"]); err == nil && n > 0 {
		return n
	}
	return len(d.Data)
}

// Strategy returns the generation strategy recorded in the metadata, if any.
func (d *TabularDataset) Strategy() string {
	return cast.ToString(d.Metadata["strategy"])
}

type StrategyList struct {
	Strategies   []string          `json:"strategies"`
	Default      string            `json:"default,omitempty"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
}

// AnalysisResult is a feasibility and cost estimate for a tabular request.
type AnalysisResult struct {
	Feasible            bool           `json:"feasible"`
	EstimatedTokens     int64          `json:"estimated_tokens"`
	EstimatedCost       float64        `json:"estimated_cost"`
	EstimatedSeconds    float64        `json:"estimated_duration_seconds"`
	RecommendedStrategy string         `json:"recommended_strategy,omitempty"`
	Warnings            []string       `json:"warnings,omitempty"`
	Details             map[string]any `json:"details,omitempty"`
}

type validateRowsRequest struct {
	Data    []map[string]any    `json:"data"`
	Columns []ColumnDescription `json:"columns"`
}

type RowValidation struct {
	Row    int      `json:"row"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidationReport holds per-row results of checking rows against a column schema.
type ValidationReport struct {
	Valid       bool            `json:"valid"`
	TotalRows   int             `json:"total_rows"`
	ValidRows   int             `json:"valid_rows"`
	InvalidRows int             `json:"invalid_rows"`
	Results     []RowValidation `json:"results"`
}

// Failed returns the results of rows that did not pass.
func (r *ValidationReport) Failed() []RowValidation {
	var out []RowValidation
	for _, rv := range r.Results {
		if !rv.Valid {
			out = append(out, rv)
		}
	}
	return out
}

// ----------------------------- Text Types -----------------------------

// TextDataset is a generated instruction dataset.
type TextDataset struct {
	Samples  []SampleExample `json:"samples"`
	Metadata map[string]any  `json:"metadata"`
}

func (d *TextDataset) SampleCount() int {
	return len(d.Samples)
}

// TextInfo describes the text generation backend.
type TextInfo struct {
	Version       string             `json:"version,omitempty"`
	Models        []string           `json:"models,omitempty"`
	OutputFormats []TextOutputFormat `json:"output_formats,omitempty"`
	MaxSamples    int                `json:"max_samples,omitempty"`
	Capabilities  map[string]any     `json:"capabilities,omitempty"`
}

type TextValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type TextExample struct {
	Name        string                       `json:"name"`
	Description string                       `json:"description,omitempty"`
	Request     TextDatasetGenerationRequest `json:"request"`
}

type TextExamples struct {
	Examples []TextExample `json:"examples"`
}
