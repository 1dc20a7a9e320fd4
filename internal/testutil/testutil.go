// Package testutil holds helpers shared by package tests: a thread-safe log
// buffer, contexts carrying a test logger, small model builders, and fixture
// node types with easily predictable outputs.
package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/drivers"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context with a debug logger. Logs are discarded unless
// HYDROGRID_TEST_LOGS=true.
func Context(t *testing.T) context.Context {
	t.Helper()
	var w io.Writer = io.Discard
	if os.Getenv("HYDROGRID_TEST_LOGS") == "true" {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

// Date parses YYYY-MM-DD or fails the test.
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := config.ParseDate(s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

// Node is a shorthand for a node declaration.
func Node(name, typ string, params map[string]any, deps config.Dependencies) *config.Node {
	return &config.Node{Name: name, Type: typ, Params: params, Deps: deps}
}

// Model assembles a model over the given date range.
func Model(t *testing.T, start, end string, nodes ...*config.Node) *config.Model {
	t.Helper()
	return &config.Model{
		Name:     t.Name(),
		Settings: config.Settings{Start: Date(t, start), End: Date(t, end)},
		Nodes:    nodes,
	}
}

// Drivers returns a driver registry of constant sources refreshed for date.
// The names precipitation, temperature and et are also bound to the climate
// namespace.
func Drivers(t *testing.T, date string, values map[string]float64) *drivers.Registry {
	t.Helper()
	reg := drivers.NewRegistry()
	for _, name := range slices.Sorted(maps.Keys(values)) {
		b := drivers.Binding{Name: name, Source: &drivers.Constant{Value: values[name]}}
		switch name {
		case drivers.SignalPrecipitation, drivers.SignalTemperature, drivers.SignalET:
			b.Namespace, b.Signal = drivers.ClimateNamespace, name
		}
		if err := reg.Register(b); err != nil {
			t.Fatalf("register driver %q: %v", name, err)
		}
	}
	if err := reg.Refresh(Date(t, date)); err != nil {
		t.Fatalf("refresh drivers: %v", err)
	}
	return reg
}
