package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/hydrogrid/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ModelPath string // model file or directory
	// OutputPath receives the results as CSV. Empty or "-" means the App's
	// output writer.
	OutputPath string
	// Start and End override the model's date range when set (YYYY-MM-DD).
	Start string
	End   string
	// PlanOnly prints the execution plan instead of running.
	PlanOnly bool

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("ModelPath is a required configuration field and cannot be empty")
	}
	for name, v := range map[string]string{"start": cfg.Start, "end": cfg.End} {
		if v == "" {
			continue
		}
		if _, err := config.ParseDate(v); err != nil {
			return nil, fmt.Errorf("invalid %s override: %w", name, err)
		}
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}

// writesToStdout reports whether results go to the App's output writer.
func (c *Config) writesToStdout() bool {
	return c.OutputPath == "" || c.OutputPath == "-"
}
