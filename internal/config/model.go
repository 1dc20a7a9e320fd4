// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

// DateLayout is the layout used for every date in a model file.
const DateLayout = time.DateOnly

// Loader turns one or more model files into a Model.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Model is the root of a loaded simulation definition.
type Model struct {
	Name        string
	Description string
	Settings    Settings
	Drivers     []*Driver
	Nodes       []*Node
}

// Settings holds the run-wide options.
type Settings struct {
	Start time.Time
	End   time.Time
}

// Driver declares one shared external signal.
type Driver struct {
	Name      string
	Namespace string
	Signal    string
	Mode      string
	Params    map[string]any
}

// Node declares one graph node.
type Node struct {
	Name   string
	Type   string
	Params map[string]any
	Deps   Dependencies
}

// Dependencies holds the three declaration shapes a node can use to pull
// data from other nodes.
type Dependencies struct {
	// Inflows are aggregated references ("node" or "node.output").
	Inflows []string
	// Source is a single reference.
	Source string
	// Connections are explicit output-to-input mappings.
	Connections []Connection
}

// Empty reports whether no dependency was declared.
func (d Dependencies) Empty() bool {
	return len(d.Inflows) == 0 && d.Source == "" && len(d.Connections) == 0
}

// Connection maps one output of Source onto the named Input of the
// declaring node. Source may carry the output in dot notation, in which case
// Output is left empty.
type Connection struct {
	Source string
	Output string
	Input  string
}

// ParseDate parses a model date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Validate checks the run-wide settings.
func (s Settings) Validate() error {
	if s.Start.IsZero() {
		return simerr.Configf("", "settings.start_date", "start date is required")
	}
	if s.End.IsZero() {
		return simerr.Configf("", "settings.end_date", "end date is required")
	}
	if s.End.Before(s.Start) {
		return simerr.Configf("", "settings.end_date", "end date %s is before start date %s",
			s.End.Format(DateLayout), s.Start.Format(DateLayout))
	}
	return nil
}

// Days returns the number of simulated dates, both ends included.
func (s Settings) Days() int {
	if s.End.Before(s.Start) {
		return 0
	}
	return int(s.End.Sub(s.Start).Hours()/24) + 1
}

// Merge appends the drivers and nodes of other to m. Settings and the name
// are taken from the first model that declares them.
func (m *Model) Merge(other *Model) error {
	if other == nil {
		return nil
	}
	if m.Name == "" {
		m.Name = other.Name
		m.Description = other.Description
	}
	if !other.Settings.Start.IsZero() || !other.Settings.End.IsZero() {
		if !m.Settings.Start.IsZero() || !m.Settings.End.IsZero() {
			return simerr.Configf("", "settings", "settings declared more than once")
		}
		m.Settings = other.Settings
	}
	m.Drivers = append(m.Drivers, other.Drivers...)
	m.Nodes = append(m.Nodes, other.Nodes...)
	return nil
}
