package pump

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/specialistvlad/hydrogrid/internal/node"
)

type point struct {
	day   int
	value float64
}

// Schedule is a day-of-year lookup table, linearly interpolated and wrapping
// around the year end.
type Schedule struct {
	points []point
}

// NewSchedule builds a schedule from day-of-year (1..366) keys.
func NewSchedule(table map[int]float64) (*Schedule, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("schedule has no entries")
	}
	s := &Schedule{}
	for day, v := range table {
		if day < 1 || day > 366 {
			return nil, fmt.Errorf("day-of-year must be within [1, 366], got %d", day)
		}
		s.points = append(s.points, point{day, v})
	}
	slices.SortFunc(s.points, func(a, b point) int { return cmp.Compare(a.day, b.day) })
	return s, nil
}

// At returns the value for a day of year.
func (s *Schedule) At(day int) float64 {
	pts := s.points
	first, last := pts[0], pts[len(pts)-1]
	if len(pts) == 1 {
		return first.value
	}
	switch {
	case day <= first.day:
		return lerp(day, point{last.day - 366, last.value}, first)
	case day >= last.day:
		return lerp(day, last, point{first.day + 366, first.value})
	}
	i, _ := slices.BinarySearchFunc(pts, day, func(p point, d int) int { return cmp.Compare(p.day, d) })
	if pts[i].day == day {
		return pts[i].value
	}
	return lerp(day, pts[i-1], pts[i])
}

func lerp(day int, a, b point) float64 {
	if a.day == b.day {
		return a.value
	}
	f := float64(day-a.day) / float64(b.day-a.day)
	return a.value + f*(b.value-a.value)
}

// parseTarget accepts a number or a table keyed by day of year.
func parseTarget(raw any) (float64, *Schedule, error) {
	switch t := raw.(type) {
	case nil:
		return 0, nil, fmt.Errorf("target is required")
	case map[string]any:
		table := make(map[int]float64, len(t))
		for k, v := range t {
			day, err := strconv.Atoi(k)
			if err != nil {
				return 0, nil, fmt.Errorf("target schedule key %q is not a day of year", k)
			}
			f, err := node.AsFloat(v)
			if err != nil {
				return 0, nil, fmt.Errorf("target schedule day %d: %w", day, err)
			}
			table[day] = f
		}
		s, err := NewSchedule(table)
		return 0, s, err
	default:
		f, err := node.AsFloat(raw)
		if err != nil {
			return 0, nil, fmt.Errorf("target must be a number or a day-of-year table: %w", err)
		}
		return f, nil, nil
	}
}
