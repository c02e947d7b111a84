package datagen

import (
	"context"
	"fmt"
)

// TextClient generates instruction-style text datasets.
type TextClient struct {
	c *Client
}

// Generate requests a text dataset.
func (t *TextClient) Generate(ctx context.Context, req TextDatasetGenerationRequest) (*TextDataset, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	out, err := postJSON[TextDataset](ctx, t.c, "text.generate", "/text/generate", req)
	if err != nil {
		return nil, err
	}
	if out.Metadata == nil {
		return nil, fmt.Errorf("%w: text.generate response has no metadata", ErrServer)
	}
	if out.SampleCount() != req.NumSamples {
		t.c.log.Warn().
			Int("requested", req.NumSamples).
			Int("received", out.SampleCount()).
			Msg("text dataset sample count differs from request")
	}
	return &out, nil
}

// Info returns model and capability metadata of the text backend.
func (t *TextClient) Info(ctx context.Context) (TextInfo, error) {
	return getJSON[TextInfo](ctx, t.c, "text.info", "/text/info", nil)
}

// Validate asks the server to check a request without generating anything.
func (t *TextClient) Validate(ctx context.Context, req TextDatasetGenerationRequest) (TextValidation, error) {
	if err := req.Validate(); err != nil {
		return TextValidation{}, err
	}
	return postJSON[TextValidation](ctx, t.c, "text.validate", "/text/validate", req)
}

// Examples returns canned example requests.
func (t *TextClient) Examples(ctx context.Context) (TextExamples, error) {
	return getJSON[TextExamples](ctx, t.c, "text.examples", "/text/examples", nil)
}
