package datagen

import "fmt"

// Format is the output encoding of a generated tabular dataset.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatArrow   Format = "arrow"
	FormatExcel   Format = "excel"
)

var formatInfo = map[Format]struct {
	contentType string
	ext         string
	binary      bool
}{
	FormatJSON:    {"application/json", ".json", false},
	FormatCSV:     {"text/csv", ".csv", false},
	FormatParquet: {"application/vnd.apache.parquet", ".parquet", true},
	FormatArrow:   {"application/vnd.apache.arrow.file", ".arrow", true},
	FormatExcel:   {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx", true},
}

// ParseFormat accepts a format name such as "csv".
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if _, ok := formatInfo[f]; !ok {
		return "", &ValidationError{Field: "format", Reason: fmt.Sprintf("must be one of json, csv, parquet, arrow, excel, got %q", s)}
	}
	return f, nil
}

func (f Format) ContentType() string { return formatInfo[f].contentType }
func (f Format) Extension() string   { return formatInfo[f].ext }

// Binary reports whether the payload is not text.
func (f Format) Binary() bool { return formatInfo[f].binary }
