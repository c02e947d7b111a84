package datagen

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

// TabularClient generates and checks tabular datasets.
type TabularClient struct {
	c *Client
}

// GenerateOption tunes a Generate call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	format   Format
	strategy string
}

// WithFormat selects the output encoding. The default is FormatJSON.
func WithFormat(f Format) GenerateOption {
	return func(o *generateOptions) { o.format = f }
}

// WithStrategy selects one of the identifiers returned by Strategies.
func WithStrategy(s string) GenerateOption {
	return func(o *generateOptions) { o.strategy = s }
}

// GenerateResult is a generated dataset. Dataset is set only for FormatJSON;
// every other format is returned as the raw payload in Body.
type GenerateResult struct {
	Format      Format
	ContentType string
	Body        []byte
	Dataset     *TabularDataset
}

// Text returns the payload as a string. Meaningful for json and csv.
func (r *GenerateResult) Text() string {
	return string(r.Body)
}

// Records parses a csv payload, header row first.
func (r *GenerateResult) Records() ([][]string, error) {
	if r.Format != FormatCSV {
		return nil, fmt.Errorf("records: payload is %s, not csv", r.Format)
	}
	records, err := csv.NewReader(bytes.NewReader(r.Body)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv payload: %w", err)
	}
	return records, nil
}

// WriteTo writes the raw payload to w.
func (r *GenerateResult) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Body)
	return int64(n), err
}

// Generate requests a dataset in the selected format.
func (t *TabularClient) Generate(ctx context.Context, req DatasetGenerationRequest, opts ...GenerateOption) (*GenerateResult, error) {
	o := generateOptions{format: FormatJSON}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := ParseFormat(string(o.format)); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := map[string]string{"format": string(o.format)}
	if o.strategy != "" {
		query["strategy"] = o.strategy
	}

	resp, err := t.c.execute(ctx, call{
		op:     "tabular.generate",
		method: http.MethodPost,
		path:   "/tabular/generate",
		body:   req,
		query:  query,
		accept: o.format.ContentType(),
	})
	if err != nil {
		return nil, err
	}

	out := &GenerateResult{
		Format:      o.format,
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}
	if o.format == FormatJSON {
		var ds TabularDataset
		if err := sonic.Unmarshal(out.Body, &ds); err != nil {
			return nil, fmt.Errorf("%w: decode tabular.generate response: %w", ErrServer, err)
		}
		if ds.Metadata == nil {
			return nil, fmt.Errorf("%w: tabular.generate response has no metadata", ErrServer)
		}
		out.Dataset = &ds
	}

	t.c.log.Debug().
		Str("format", string(o.format)).
		Int("bytes", len(out.Body)).
		Int("num_rows", req.NumRows).
		Msg("tabular dataset generated")
	return out, nil
}

// Strategies lists the generation strategies accepted by WithStrategy.
func (t *TabularClient) Strategies(ctx context.Context) (StrategyList, error) {
	return getJSON[StrategyList](ctx, t.c, "tabular.strategies", "/tabular/strategies", nil)
}

// Analyze estimates feasibility and cost of a request without generating data.
func (t *TabularClient) Analyze(ctx context.Context, req DatasetGenerationRequest) (AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return AnalysisResult{}, err
	}
	return postJSON[AnalysisResult](ctx, t.c, "tabular.analyze", "/tabular/analyze", req)
}

// Validate checks existing rows against a column schema.
func (t *TabularClient) Validate(ctx context.Context, rows []map[string]any, columns []ColumnDescription) (ValidationReport, error) {
	if len(rows) == 0 {
		return ValidationReport{}, &ValidationError{Field: "data", Reason: "must have at least 1 entries"}
	}
	if len(columns) == 0 {
		return ValidationReport{}, &ValidationError{Field: "columns", Reason: "must have at least 1 entries"}
	}
	if err := validateColumns(columns); err != nil {
		return ValidationReport{}, err
	}
	return postJSON[ValidationReport](ctx, t.c, "tabular.validate", "/tabular/validate", validateRowsRequest{Data: rows, Columns: columns})
}
