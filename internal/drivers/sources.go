package drivers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/specialistvlad/hydrogrid/internal/kernel"
	"github.com/specialistvlad/hydrogrid/internal/kernel/et"
	"github.com/specialistvlad/hydrogrid/internal/kernel/noise"
)

// Constant returns the same value every day.
type Constant struct {
	Value float64
}

func (c *Constant) Evaluate(time.Time, Values) (float64, error) { return c.Value, nil }
func (c *Constant) Commit()                                     {}

// Timeseries serves values read from a table keyed by date.
type Timeseries struct {
	values map[string]float64
}

// NewTimeseries builds a series from a date-keyed map (YYYY-MM-DD keys).
func NewTimeseries(values map[string]float64) *Timeseries {
	return &Timeseries{values: values}
}

// LoadTimeseries reads one column of a CSV file. The file must have a header
// row; dateColumn names the column holding YYYY-MM-DD dates.
func LoadTimeseries(fs afero.Fs, path, dateColumn, column string) (*Timeseries, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timeseries %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	dateIdx, valueIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case dateColumn:
			dateIdx = i
		case column:
			valueIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("%s has no date column %q", path, dateColumn)
	}
	if valueIdx < 0 {
		return nil, fmt.Errorf("%s has no column %q (columns: %s)", path, column, strings.Join(header, ", "))
	}

	values := map[string]float64{}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid date %q", path, line, rec[dateIdx])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valueIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid value %q in column %q", path, line, rec[valueIdx], column)
		}
		values[d.Format(time.DateOnly)] = v
	}
	return NewTimeseries(values), nil
}

func (t *Timeseries) Evaluate(date time.Time, _ Values) (float64, error) {
	key := date.Format(time.DateOnly)
	v, ok := t.values[key]
	if !ok {
		return 0, fmt.Errorf("timeseries has no value for %s", key)
	}
	return v, nil
}

func (t *Timeseries) Commit() {}

// Len is the number of dated values.
func (t *Timeseries) Len() int { return len(t.values) }

// Stochastic draws a normal value per day from an explicitly seeded
// generator. The generator state advances only when the whole refresh
// succeeds.
type Stochastic struct {
	params noise.Params
	seed   uint64
	cell   *kernel.Cell[noise.State]
}

// NewStochastic returns a source seeded with seed.
func NewStochastic(p noise.Params, seed uint64) (*Stochastic, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Stochastic{params: p, seed: seed, cell: kernel.NewCell(noise.Seed(seed))}, nil
}

// Seed returns the seed the source started from.
func (s *Stochastic) Seed() uint64 { return s.seed }

func (s *Stochastic) Evaluate(time.Time, Values) (float64, error) {
	out, err := kernel.Run(s.cell, noise.Normal, struct{}{}, s.params)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

func (s *Stochastic) Commit() { s.cell.Commit() }

// Hargreaves derives reference ET from two temperature drivers registered
// earlier.
type Hargreaves struct {
	Tmin   string
	Tmax   string
	Params et.Params
}

func (h *Hargreaves) Evaluate(date time.Time, resolved Values) (float64, error) {
	tmin, ok := resolved.Value(h.Tmin)
	if !ok {
		return 0, fmt.Errorf("temperature driver %q must be declared before this one", h.Tmin)
	}
	tmax, ok := resolved.Value(h.Tmax)
	if !ok {
		return 0, fmt.Errorf("temperature driver %q must be declared before this one", h.Tmax)
	}
	return et.Hargreaves(et.Inputs{TminC: tmin, TmaxC: tmax, DayOfYear: date.YearDay()}, h.Params), nil
}

func (h *Hargreaves) Commit() {}
