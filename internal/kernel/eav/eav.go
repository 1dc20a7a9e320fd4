// Package eav holds elevation-area-volume tables, which describe the
// geometry of a real storage basin. Elevation and surface area are linearly
// interpolated from the stored volume and clamped to the first and last rows
// outside the table range.
package eav

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Point is one row of a table: elevation in m, area in m2, volume in m3.
type Point struct {
	Elevation float64
	Area      float64
	Volume    float64
}

// Table is an immutable EAV table sorted by volume.
type Table struct {
	points []Point
}

// New sorts the points by volume and checks that they describe a usable
// geometry.
func New(points []Point) (*Table, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("an EAV table needs at least 2 rows, got %d", len(points))
	}
	pts := slices.Clone(points)
	slices.SortStableFunc(pts, func(a, b Point) int {
		switch {
		case a.Volume < b.Volume:
			return -1
		case a.Volume > b.Volume:
			return 1
		}
		return 0
	})
	for i, p := range pts {
		if p.Volume < 0 || p.Area < 0 {
			return nil, fmt.Errorf("row with volume %g: volume and area must be non-negative", p.Volume)
		}
		if i > 0 && p.Volume == pts[i-1].Volume {
			return nil, fmt.Errorf("volume %g appears twice", p.Volume)
		}
	}
	return &Table{points: pts}, nil
}

// Points returns a copy of the rows in volume order.
func (t *Table) Points() []Point {
	return slices.Clone(t.points)
}

// MaxVolume is the volume of the last row.
func (t *Table) MaxVolume() float64 {
	return t.points[len(t.points)-1].Volume
}

// Elevation at the given volume.
func (t *Table) Elevation(volume float64) float64 {
	return t.interpolate(volume, func(p Point) float64 { return p.Elevation })
}

// Area at the given volume.
func (t *Table) Area(volume float64) float64 {
	return t.interpolate(volume, func(p Point) float64 { return p.Area })
}

func (t *Table) interpolate(volume float64, field func(Point) float64) float64 {
	pts := t.points
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Volume >= volume })
	switch {
	case i == 0:
		return field(pts[0])
	case i == len(pts):
		return field(pts[len(pts)-1])
	}
	lo, hi := pts[i-1], pts[i]
	frac := (volume - lo.Volume) / (hi.Volume - lo.Volume)
	return field(lo) + frac*(field(hi)-field(lo))
}

var columns = []string{"elevation", "area", "volume"}

// Load reads a CSV file with a header row naming the elevation, area and
// volume columns, in any order. Other columns are ignored.
func Load(fs afero.Fs, path string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EAV table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, c := range columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s is missing columns %s (columns: %s)", path, strings.Join(missing, ", "), strings.Join(header, ", "))
	}

	var points []Point
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		var vals [3]float64
		for j, c := range columns {
			raw := strings.TrimSpace(rec[idx[c]])
			if vals[j], err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("%s line %d: invalid %s %q", path, line, c, raw)
			}
		}
		points = append(points, Point{Elevation: vals[0], Area: vals[1], Volume: vals[2]})
	}

	t, err := New(points)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
