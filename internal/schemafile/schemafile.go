// Package schemafile loads generation requests and row sets from YAML or JSON files.
package schemafile

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tensorplex-labs/datagen/pkg/datagen"
)

type ColumnSpec struct {
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description,omitempty"`
	Constraints map[string]any `yaml:"constraints,omitempty"`
	Categories  []string       `yaml:"categories,omitempty"`
}

// Column converts the spec through the column builder so the same shape checks apply.
func (c ColumnSpec) Column() (datagen.ColumnDescription, error) {
	b := datagen.Column.Of(c.Name, datagen.ColumnType(c.Type))
	if c.Description != "" {
		b.Description(c.Description)
	}

	keys := make([]string, 0, len(c.Constraints))
	for k := range c.Constraints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch k {
		case datagen.ConstraintMin:
			b.Min(c.Constraints[k])
		case datagen.ConstraintMax:
			b.Max(c.Constraints[k])
		default:
			b.Constraint(k, c.Constraints[k])
		}
	}

	if len(c.Categories) > 0 {
		b.Categories(c.Categories...)
	}
	return b.Build()
}

// TabularSpec is the file form of a tabular generation job.
type TabularSpec struct {
	Topic    string       `yaml:"topic"`
	NumRows  int          `yaml:"num_rows"`
	Seed     *int64       `yaml:"seed,omitempty"`
	Strategy string       `yaml:"strategy,omitempty"`
	Format   string       `yaml:"format,omitempty"`
	Columns  []ColumnSpec `yaml:"columns"`
}

func (s *TabularSpec) Request() (datagen.DatasetGenerationRequest, error) {
	cols, err := s.ColumnDescriptions()
	if err != nil {
		return datagen.DatasetGenerationRequest{}, err
	}
	req := datagen.DatasetGenerationRequest{
		NumRows: s.NumRows,
		Topic:   s.Topic,
		Columns: cols,
		Seed:    s.Seed,
	}
	if err := req.Validate(); err != nil {
		return datagen.DatasetGenerationRequest{}, err
	}
	return req, nil
}

func (s *TabularSpec) ColumnDescriptions() ([]datagen.ColumnDescription, error) {
	cols := make([]datagen.ColumnDescription, 0, len(s.Columns))
	for i, cs := range s.Columns {
		col, err := cs.Column()
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

type ExampleSpec struct {
	Instruction string `yaml:"instruction"`
	Input       string `yaml:"input,omitempty"`
	Output      string `yaml:"output"`
}

// TextSpec is the file form of a text generation job.
type TextSpec struct {
	NumSamples      int           `yaml:"num_samples"`
	TaskDefinition  string        `yaml:"task_definition"`
	DataDomain      string        `yaml:"data_domain,omitempty"`
	DataDescription string        `yaml:"data_description,omitempty"`
	OutputFormat    string        `yaml:"output_format,omitempty"`
	SampleExamples  []ExampleSpec `yaml:"sample_examples,omitempty"`
}

func (s *TextSpec) Request() (datagen.TextDatasetGenerationRequest, error) {
	req := datagen.TextDatasetGenerationRequest{
		NumSamples:      s.NumSamples,
		TaskDefinition:  s.TaskDefinition,
		DataDomain:      s.DataDomain,
		DataDescription: s.DataDescription,
		OutputFormat:    datagen.TextOutputFormat(s.OutputFormat),
	}
	for _, ex := range s.SampleExamples {
		req.SampleExamples = append(req.SampleExamples, datagen.SampleExample(ex))
	}
	if err := req.Validate(); err != nil {
		return datagen.TextDatasetGenerationRequest{}, err
	}
	return req, nil
}

func load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LoadTabular reads a TabularSpec. JSON files parse as well, JSON being a subset of YAML.
func LoadTabular(path string) (*TabularSpec, error) {
	var spec TabularSpec
	if err := load(path, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func LoadText(path string) (*TextSpec, error) {
	var spec TextSpec
	if err := load(path, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// RowsFile holds rows to check and, optionally, the schema to check them against.
type RowsFile struct {
	Columns []ColumnSpec     `yaml:"columns,omitempty"`
	Rows    []map[string]any `yaml:"rows"`
}

func LoadRows(path string) (*RowsFile, error) {
	var rf RowsFile
	if err := load(path, &rf); err != nil {
		return nil, err
	}
	if len(rf.Rows) == 0 {
		return nil, fmt.Errorf("%s: no rows", path)
	}
	return &rf, nil
}
