package modelfs

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/hydrogrid/internal/testutil"
)

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	return fs
}

func TestDiscover(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/m/b.hcl":            "",
		"/m/a.YAML":           "",
		"/m/sub/deep/c.yml":   "",
		"/m/readme.md":        "",
		"/m/data/inflows.csv": "",
	})
	l := New(fs)
	ctx := testutil.Context(t)

	t.Run("directory", func(t *testing.T) {
		files, err := l.Discover(ctx, "/m")
		require.NoError(t, err)
		assert.Equal(t, []string{"/m/a.YAML", "/m/b.hcl", "/m/sub/deep/c.yml"}, files)
	})

	t.Run("single file", func(t *testing.T) {
		files, err := l.Discover(ctx, "/m/b.hcl")
		require.NoError(t, err)
		assert.Equal(t, []string{"/m/b.hcl"}, files)
	})

	t.Run("unsupported file", func(t *testing.T) {
		_, err := l.Discover(ctx, "/m/readme.md")
		assert.ErrorContains(t, err, "unsupported model file /m/readme.md")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := l.Discover(ctx, "/nowhere")
		assert.ErrorContains(t, err, "model path not found: /nowhere")
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := l.Discover(ctx, "/m/data")
		assert.ErrorContains(t, err, "no model files")
	})
}

func TestLoad_MixedFormats(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/m/1-settings.hcl": `
model "mixed" {}
settings {
  start_date = "2020-01-01"
  end_date   = "2020-01-02"
}
component "constant" "river" {
  params {
    value = 4
  }
}
`,
		"/m/2-nodes.yaml": `
components:
  - name: res
    type: reservoir
    inflows: [river]
`,
	})

	src, err := New(fs).Load(testutil.Context(t), "/m")
	require.NoError(t, err)

	assert.Equal(t, "/m", src.BaseDir)
	assert.Equal(t, []string{"/m/1-settings.hcl", "/m/2-nodes.yaml"}, src.Files)
	assert.Equal(t, "mixed", src.Model.Name)
	require.Len(t, src.Model.Nodes, 2)
	assert.Equal(t, "river", src.Model.Nodes[0].Name)
	assert.Equal(t, "res", src.Model.Nodes[1].Name)
}

func TestLoad_SingleFileBaseDir(t *testing.T) {
	fs := newFs(t, map[string]string{"/models/x/m.yaml": "name: x\n"})
	src, err := New(fs).Load(testutil.Context(t), "/models/x/m.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/models/x", src.BaseDir)
}

func TestLoad_SettingsTwiceAcrossFiles(t *testing.T) {
	settings := "settings:\n  start_date: \"2020-01-01\"\n  end_date: \"2020-01-02\"\n"
	fs := newFs(t, map[string]string{"/m/a.yaml": settings, "/m/b.yaml": settings})
	_, err := New(fs).Load(testutil.Context(t), "/m")
	assert.ErrorContains(t, err, "settings declared more than once")
}
