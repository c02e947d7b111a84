package datagen

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// DatasetGenerationRequest asks for a tabular dataset.
type DatasetGenerationRequest struct {
	NumRows int                 `json:"num_rows" validate:"gt=0"`
	Topic   string              `json:"topic" validate:"required"`
	Columns []ColumnDescription `json:"columns" validate:"min=1"`
	Seed    *int64              `json:"seed,omitempty"`
}

// Validate rejects requests that can never succeed. Constraint semantics are left to the server.
func (r *DatasetGenerationRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	return validateColumns(r.Columns)
}

func validateColumns(cols []ColumnDescription) error {
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		if c.Name() == "" {
			return &ValidationError{Field: fmt.Sprintf("columns[%d].name", i), Reason: "must not be empty"}
		}
		if _, dup := seen[c.Name()]; dup {
			return &ValidationError{Field: "columns", Reason: fmt.Sprintf("contain duplicate name %q", c.Name())}
		}
		seen[c.Name()] = struct{}{}
	}
	return nil
}

// TextOutputFormat is the record layout of a generated text dataset.
type TextOutputFormat string

const (
	TextFormatJSON     TextOutputFormat = "json"
	TextFormatJSONL    TextOutputFormat = "jsonl"
	TextFormatCSV      TextOutputFormat = "csv"
	TextFormatAlpaca   TextOutputFormat = "alpaca"
	TextFormatShareGPT TextOutputFormat = "sharegpt"
)

// SampleExample is one instruction/input/output triple used to steer text generation.
type SampleExample struct {
	Instruction string `json:"instruction" validate:"required"`
	Input       string `json:"input"`
	Output      string `json:"output" validate:"required"`
}

// TextDatasetGenerationRequest asks for an instruction-style text dataset.
type TextDatasetGenerationRequest struct {
	NumSamples      int              `json:"num_samples" validate:"gt=0"`
	TaskDefinition  string           `json:"task_definition" validate:"required"`
	DataDomain      string           `json:"data_domain"`
	DataDescription string           `json:"data_description"`
	OutputFormat    TextOutputFormat `json:"output_format" validate:"omitempty,oneof=json jsonl csv alpaca sharegpt"`
	SampleExamples  []SampleExample  `json:"sample_examples,omitempty" validate:"dive"`
}

func (r *TextDatasetGenerationRequest) Validate() error {
	return validateStruct(r)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}

	fe := verrs[0]
	return &ValidationError{Field: trimNamespace(fe.Namespace()), Reason: describeTag(fe)}
}

func trimNamespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
