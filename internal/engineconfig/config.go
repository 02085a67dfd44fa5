// Package engineconfig holds the ambient, JSON-file-configurable knobs for
// the ingestion engine, using a Default/Load/Validate shape.
package engineconfig

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// Config is the engine's top-level ambient configuration.
type Config struct {
	// CacheSizeBytes is loaded and validated only. The sources opened
	// through sourcefactory do not read it; their cached filelike uses the
	// package's own DefaultCacheSize (64 MiB).
	CacheSizeBytes int64 `json:"cache_size_bytes"`

	// BatchWindowMillis is the foreground's cursor batching window
	// (spec.md §4.K: "~17 ms, one animation frame").
	BatchWindowMillis int64 `json:"batch_window_millis"`

	// Format forces "mcap"|"bag"|"auto" source selection (sourcefactory.Format).
	Format string `json:"format"`

	// HTTPTimeoutSeconds is loaded and validated only. No HTTP client in the
	// engine reads it; range fetches go through http.DefaultClient, which
	// has no timeout.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds"`
}

func Default() Config {
	return Config{
		CacheSizeBytes:     64 * 1024 * 1024,
		BatchWindowMillis:  17,
		Format:             "auto",
		HTTPTimeoutSeconds: 30,
	}
}

// Load reads a JSON config file, falling back to Default() values for any
// field the file omits. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.CacheSizeBytes <= 0 {
		return errors.New("cache_size_bytes must be > 0")
	}
	if c.BatchWindowMillis <= 0 {
		return errors.New("batch_window_millis must be > 0")
	}
	switch strings.ToLower(c.Format) {
	case "", "auto", "mcap", "bag":
	default:
		return errors.New("format must be auto|mcap|bag")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return errors.New("http_timeout_seconds must be > 0")
	}
	return nil
}
