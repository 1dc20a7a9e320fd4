// Package modelfs finds model files and hands each one to the loader for
// its format. A model path may be a single file or a directory; directories
// are searched recursively and their files are loaded in lexical order.
package modelfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/hcl_adapter"
	"github.com/specialistvlad/hydrogrid/internal/yaml_adapter"
)

// Pattern selects model files inside a directory.
const Pattern = "**/*.{hcl,yaml,yml}"

// Source is a loaded model together with where it came from.
type Source struct {
	Model *config.Model
	Files []string
	// BaseDir resolves relative paths inside the model, such as timeseries
	// files.
	BaseDir string
}

// Loader dispatches files to format loaders by extension.
type Loader struct {
	fs      afero.Fs
	loaders map[string]config.Loader
}

// New returns a loader that knows HCL and YAML.
func New(fs afero.Fs) *Loader {
	yl := yaml_adapter.NewLoader(fs)
	return &Loader{
		fs: fs,
		loaders: map[string]config.Loader{
			".hcl":  hcl_adapter.NewLoader(fs),
			".yaml": yl,
			".yml":  yl,
		},
	}
}

// Discover returns the model files under path.
func (l *Loader) Discover(ctx context.Context, path string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	info, err := l.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("model path not found: %s", path)
		}
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}

	if !info.IsDir() {
		if _, ok := l.loaders[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil, fmt.Errorf("unsupported model file %s: expected .hcl, .yaml or .yml", path)
		}
		logger.Debug("Model path is a single file.", "file", path)
		return []string{path}, nil
	}

	logger.Debug("Model path is a directory, scanning for model files.", "directory", path)
	var files []string
	err = afero.Walk(l.fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		if doublestar.MatchUnvalidated(Pattern, filepath.ToSlash(strings.ToLower(rel))) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no model files (%s) found in %s", Pattern, path)
	}
	logger.Debug("Discovered model files.", "count", len(files))
	return files, nil
}

// Load discovers and loads the model at path. Files of different formats
// may be mixed; they are merged in discovery order.
func (l *Loader) Load(ctx context.Context, path string) (*Source, error) {
	files, err := l.Discover(ctx, path)
	if err != nil {
		return nil, err
	}

	model := &config.Model{}
	for _, f := range files {
		loader := l.loaders[strings.ToLower(filepath.Ext(f))]
		part, err := loader.Load(ctx, f)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}

	base := path
	if info, err := l.fs.Stat(path); err == nil && !info.IsDir() {
		base = filepath.Dir(path)
	}
	return &Source{Model: model, Files: files, BaseDir: base}, nil
}
