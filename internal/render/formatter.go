// Package render writes scan results and lookup answers as a table, JSON or
// CSV.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (want table, json or csv)", s)
	}
}

// Flagger is implemented by rows that should be highlighted in a table.
type Flagger interface {
	Flagged() bool
}

// Formatter writes a slice of structs whose exported fields carry a
// `header` tag. Fields without the tag are skipped.
type Formatter interface {
	Format(data interface{}, writer io.Writer) error
}

// NewFormatter creates a new Formatter for the given format. color only
// affects tables.
func NewFormatter(format OutputFormat, color bool) (Formatter, error) {
	switch format {
	case FormatTable:
		return &TableFormatter{Color: color}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ColorEnabled reports whether w is a terminal.
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// JSONFormatter formats data as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data interface{}, writer io.Writer) error {
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	flaggedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// TableFormatter draws a bordered table. Rows implementing Flagger are
// highlighted when Color is set.
type TableFormatter struct {
	Color bool
}

func (f *TableFormatter) Format(data interface{}, writer io.Writer) error {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return fmt.Errorf("data must be a slice")
	}

	headers := getHeaders(val.Type().Elem())
	flagged := make([]bool, val.Len())

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
	for i := 0; i < val.Len(); i++ {
		elem := val.Index(i)
		if fl, ok := elem.Interface().(Flagger); ok {
			flagged[i] = fl.Flagged()
		}
		t.Row(getRowValues(elem, true)...)
	}

	t.StyleFunc(func(row, _ int) lipgloss.Style {
		style := cellStyle
		if !f.Color {
			return style
		}
		switch {
		case row == table.HeaderRow:
			return style.Inherit(headerStyle)
		case row >= 0 && row < len(flagged) && flagged[row]:
			return style.Inherit(flaggedStyle)
		}
		return style
	})
	if f.Color {
		t.BorderStyle(borderStyle)
	}

	_, err := fmt.Fprintln(writer, t.String())
	return err
}

// CSVFormatter formats data as CSV using struct tags.
type CSVFormatter struct{}

func (f *CSVFormatter) Format(data interface{}, writer io.Writer) error {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return fmt.Errorf("data must be a slice")
	}

	w := csv.NewWriter(writer)
	if err := w.Write(getHeaders(val.Type().Elem())); err != nil {
		return err
	}
	for i := 0; i < val.Len(); i++ {
		if err := w.Write(getRowValues(val.Index(i), false)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func getHeaders(t reflect.Type) []string {
	var headers []string
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("header"); tag != "" {
			headers = append(headers, tag)
		}
	}
	return headers
}

// getRowValues stringifies tagged fields. Tables show booleans as a marker
// and sanitise strings; CSV keeps raw values.
func getRowValues(v reflect.Value, forTable bool) []string {
	var values []string
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Tag.Get("header") == "" {
			continue
		}
		field := v.Field(i)
		switch {
		case field.Kind() == reflect.Bool && forTable:
			if field.Bool() {
				values = append(values, "yes")
			} else {
				values = append(values, "")
			}
		case field.Kind() == reflect.Bool:
			values = append(values, strconv.FormatBool(field.Bool()))
		case forTable:
			values = append(values, Sanitize(fmt.Sprintf("%v", field.Interface())))
		default:
			values = append(values, fmt.Sprintf("%v", field.Interface()))
		}
	}
	return values
}
