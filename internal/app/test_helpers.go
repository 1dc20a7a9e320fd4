package app

import (
	"bytes"
	"os"
	"testing"

	"github.com/spf13/afero"

	"github.com/specialistvlad/hydrogrid/internal/registry"
	"github.com/specialistvlad/hydrogrid/internal/testutil"
)

// SetupAppTest writes files into an in-memory filesystem and creates an App
// over it for system testing. It returns the App, its log buffer and the
// buffer receiving results.
func SetupAppTest(t *testing.T, cfg *Config, files map[string]string, modules ...registry.Module) (*App, *testutil.SafeBuffer, *bytes.Buffer, error) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, body := range files {
		if err := afero.WriteFile(fs, name, []byte(body), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	logBuffer := &testutil.SafeBuffer{}
	out := &bytes.Buffer{}
	cfg.LogLevel = "debug"
	testApp, err := NewApp(out, logBuffer, cfg, fs, modules...)

	t.Cleanup(func() {
		if os.Getenv("HYDROGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer, out, err
}
