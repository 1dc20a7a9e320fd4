package simulation

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/node"
)

// Metadata describes the run that produced a result set.
type Metadata struct {
	RunID string
	Model string
	Start time.Time
	End   time.Time
	// Order is the node execution order.
	Order []string
	// Seeds of the stochastic drivers, by driver name.
	Seeds map[string]uint64
}

// Row is the record of one timestep. Values holds every column; a column a
// node did not produce that day holds nil.
type Row struct {
	Date   time.Time
	Values map[string]any
}

// Results is the dense, ordered record of a completed run.
type Results struct {
	Meta    Metadata
	columns []string
	index   map[string]int
	rows    []Row
}

func newResults(columns []string) *Results {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return &Results{columns: columns, index: index}
}

func (r *Results) append(date time.Time, snaps map[string]node.Outputs, owners []columnOwner) {
	values := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		o := owners[i]
		v, ok := snaps[o.node][o.output]
		if !ok {
			values[c] = nil
			continue
		}
		values[c] = v
	}
	r.rows = append(r.rows, Row{Date: date, Values: values})
}

// Columns returns the column keys, "<node>.<output>", in execution order.
func (r *Results) Columns() []string {
	return slices.Clone(r.columns)
}

// Len is the number of rows.
func (r *Results) Len() int {
	return len(r.rows)
}

// Rows returns a deep copy of every row.
func (r *Results) Rows() []Row {
	out := make([]Row, len(r.rows))
	for i, row := range r.rows {
		out[i] = Row{Date: row.Date, Values: node.Copy(row.Values).(map[string]any)}
	}
	return out
}

// Dates returns the date of every row.
func (r *Results) Dates() []time.Time {
	out := make([]time.Time, len(r.rows))
	for i, row := range r.rows {
		out[i] = row.Date
	}
	return out
}

// Column returns one column, or false if the key is unknown.
func (r *Results) Column(key string) ([]any, bool) {
	if _, ok := r.index[key]; !ok {
		return nil, false
	}
	out := make([]any, len(r.rows))
	for i, row := range r.rows {
		out[i] = node.Copy(row.Values[key])
	}
	return out, true
}

// Floats returns a numeric column. Missing values are an error.
func (r *Results) Floats(key string) ([]float64, error) {
	col, ok := r.Column(key)
	if !ok {
		return nil, fmt.Errorf("no column %q", key)
	}
	out := make([]float64, len(col))
	for i, v := range col {
		if v == nil {
			return nil, fmt.Errorf("column %q has no value on %s", key, r.rows[i].Date.Format(time.DateOnly))
		}
		f, err := node.AsFloat(v)
		if err != nil {
			return nil, fmt.Errorf("column %q on %s: %w", key, r.rows[i].Date.Format(time.DateOnly), err)
		}
		out[i] = f
	}
	return out, nil
}

// WriteCSV writes a header row ("date" then every column) followed by one
// line per timestep. Missing values are written as empty fields.
func (r *Results) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"date"}, r.columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, row := range r.rows {
		record[0] = row.Date.Format(time.DateOnly)
		for i, c := range r.columns {
			record[i+1] = formatValue(row.Values[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	if f, err := node.AsFloat(v); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// columnOwner maps a column back to the node output it records.
type columnOwner struct {
	node   string
	output string
}
