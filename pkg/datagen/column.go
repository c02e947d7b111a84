package datagen

import (
	"fmt"
	"maps"
	"slices"

	"github.com/bytedance/sonic"
)

// ColumnType is the data type of a generated column.
type ColumnType string

const (
	TypeString      ColumnType = "string"
	TypeInt         ColumnType = "int"
	TypeFloat       ColumnType = "float"
	TypeBool        ColumnType = "bool"
	TypeEmail       ColumnType = "email"
	TypeCategorical ColumnType = "categorical"
	TypeDate        ColumnType = "date"
	TypeDateTime    ColumnType = "datetime"
	TypeUUID        ColumnType = "uuid"
	TypePhone       ColumnType = "phone"
	TypeName        ColumnType = "name"
	TypeAddress     ColumnType = "address"
	TypeURL         ColumnType = "url"
	TypeText        ColumnType = "text"
)

// ColumnTypes lists every known column type.
var ColumnTypes = []ColumnType{
	TypeString, TypeInt, TypeFloat, TypeBool, TypeEmail, TypeCategorical, TypeDate,
	TypeDateTime, TypeUUID, TypePhone, TypeName, TypeAddress, TypeURL, TypeText,
}

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	return slices.Contains(ColumnTypes, t)
}

func (t ColumnType) ranged() bool {
	switch t {
	case TypeInt, TypeFloat, TypeDate, TypeDateTime:
		return true
	}
	return false
}

// Constraint keys understood by the server.
const (
	ConstraintMin     = "min"
	ConstraintMax     = "max"
	ConstraintPattern = "regex"
)

// ColumnDescription describes one column of a tabular dataset. It is immutable;
// accessors return copies.
type ColumnDescription struct {
	name        string
	typ         ColumnType
	description string
	constraints map[string]any
	categories  []string
}

func (c ColumnDescription) Name() string        { return c.name }
func (c ColumnDescription) Type() ColumnType    { return c.typ }
func (c ColumnDescription) Description() string { return c.description }

// Constraints returns a copy of the column constraints, or nil if none were set.
func (c ColumnDescription) Constraints() map[string]any {
	if len(c.constraints) == 0 {
		return nil
	}
	return maps.Clone(c.constraints)
}

// Categories returns a copy of the allowed values of a categorical column.
func (c ColumnDescription) Categories() []string {
	if len(c.categories) == 0 {
		return nil
	}
	return slices.Clone(c.categories)
}

type columnJSON struct {
	Name        string         `json:"name"`
	Type        ColumnType     `json:"type"`
	Description string         `json:"description,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty"`
	Categories  []string       `json:"categories,omitempty"`
}

func (c ColumnDescription) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(columnJSON{
		Name:        c.name,
		Type:        c.typ,
		Description: c.description,
		Constraints: c.constraints,
		Categories:  c.categories,
	})
}

func (c *ColumnDescription) UnmarshalJSON(data []byte) error {
	var cj columnJSON
	if err := sonic.Unmarshal(data, &cj); err != nil {
		return err
	}
	*c = ColumnDescription{
		name:        cj.Name,
		typ:         cj.Type,
		description: cj.Description,
		constraints: cj.Constraints,
		categories:  cj.Categories,
	}
	return nil
}

// ColumnBuilder accumulates the fields of a ColumnDescription.
type ColumnBuilder struct {
	col ColumnDescription
	err error
}

type columnFactory struct{}

// Column is the entry point for building column descriptions:
//
//	age := datagen.Column.Int("age").Min(18).Max(90).MustBuild()
var Column columnFactory

func newColumn(name string, typ ColumnType) *ColumnBuilder {
	return &ColumnBuilder{col: ColumnDescription{name: name, typ: typ}}
}

func (columnFactory) Of(name string, typ ColumnType) *ColumnBuilder { return newColumn(name, typ) }
func (columnFactory) String(name string) *ColumnBuilder             { return newColumn(name, TypeString) }
func (columnFactory) Int(name string) *ColumnBuilder                { return newColumn(name, TypeInt) }
func (columnFactory) Float(name string) *ColumnBuilder              { return newColumn(name, TypeFloat) }
func (columnFactory) Bool(name string) *ColumnBuilder               { return newColumn(name, TypeBool) }
func (columnFactory) Email(name string) *ColumnBuilder              { return newColumn(name, TypeEmail) }
func (columnFactory) Date(name string) *ColumnBuilder               { return newColumn(name, TypeDate) }
func (columnFactory) DateTime(name string) *ColumnBuilder           { return newColumn(name, TypeDateTime) }
func (columnFactory) UUID(name string) *ColumnBuilder               { return newColumn(name, TypeUUID) }
func (columnFactory) Phone(name string) *ColumnBuilder              { return newColumn(name, TypePhone) }
func (columnFactory) Name(name string) *ColumnBuilder               { return newColumn(name, TypeName) }
func (columnFactory) Address(name string) *ColumnBuilder            { return newColumn(name, TypeAddress) }
func (columnFactory) URL(name string) *ColumnBuilder                { return newColumn(name, TypeURL) }
func (columnFactory) Text(name string) *ColumnBuilder               { return newColumn(name, TypeText) }

func (columnFactory) Categorical(name string, categories ...string) *ColumnBuilder {
	return newColumn(name, TypeCategorical).Categories(categories...)
}

func (b *ColumnBuilder) Description(desc string) *ColumnBuilder {
	b.col.description = desc
	return b
}

// Constraint sets an arbitrary constraint. Its meaning is checked by the server.
func (b *ColumnBuilder) Constraint(key string, value any) *ColumnBuilder {
	if b.col.constraints == nil {
		b.col.constraints = make(map[string]any)
	}
	b.col.constraints[key] = value
	return b
}

func (b *ColumnBuilder) Min(v any) *ColumnBuilder {
	if !b.col.typ.ranged() {
		b.fail(fmt.Errorf("min is not supported for %s columns", b.col.typ))
	}
	return b.Constraint(ConstraintMin, v)
}

func (b *ColumnBuilder) Max(v any) *ColumnBuilder {
	if !b.col.typ.ranged() {
		b.fail(fmt.Errorf("max is not supported for %s columns", b.col.typ))
	}
	return b.Constraint(ConstraintMax, v)
}

// Pattern constrains generated values to match a regular expression.
func (b *ColumnBuilder) Pattern(regex string) *ColumnBuilder {
	return b.Constraint(ConstraintPattern, regex)
}

func (b *ColumnBuilder) Categories(categories ...string) *ColumnBuilder {
	if b.col.typ != TypeCategorical {
		b.fail(fmt.Errorf("categories are only supported for categorical columns, not %s", b.col.typ))
	}
	b.col.categories = append(b.col.categories[:0:0], categories...)
	return b
}

func (b *ColumnBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build returns the finished column. Only the shape of the fields is checked here.
func (b *ColumnBuilder) Build() (ColumnDescription, error) {
	if b.err != nil {
		return ColumnDescription{}, &ValidationError{Field: "column " + b.col.name, Reason: b.err.Error()}
	}
	if b.col.name == "" {
		return ColumnDescription{}, &ValidationError{Field: "column name", Reason: "must not be empty"}
	}
	if !b.col.typ.Valid() {
		return ColumnDescription{}, &ValidationError{Field: "column " + b.col.name, Reason: fmt.Sprintf("has unknown type %q", b.col.typ)}
	}
	if b.col.typ == TypeCategorical && len(b.col.categories) == 0 {
		return ColumnDescription{}, &ValidationError{Field: "column " + b.col.name, Reason: "needs at least one category"}
	}

	col := b.col
	col.constraints = maps.Clone(b.col.constraints)
	col.categories = slices.Clone(b.col.categories)
	return col, nil
}

// MustBuild is like Build but panics on error.
func (b *ColumnBuilder) MustBuild() ColumnDescription {
	col, err := b.Build()
	if err != nil {
		panic(err)
	}
	return col
}
