// Package config loads a compress run's HCL configuration file, the
// read-side counterpart to the teacher's hclwrite-based format step
// (internal/writeback/format.go): inputs, output directory, compression
// level, optional timestamp-column path, and the encoding-size split
// threshold (spec.md §6's CLI surface, plus the fields spec.md leaves to
// "configuration loading").
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

const (
	defaultCompressionLevel = 3
	defaultMaxEncodingSize  = 16 << 20 // 16 MiB uncompressed per archive, before a split
)

// Config is one compress run's settings. cmd/compress.go takes every
// field from the file; it has no flags that override individual fields.
type Config struct {
	Inputs           []string `hcl:"inputs"`
	OutputDir        string   `hcl:"output_dir"`
	CompressionLevel int      `hcl:"compression_level,optional"`
	TimestampColumn  []string `hcl:"timestamp_column,optional"`
	MaxEncodingSize  int64    `hcl:"max_encoding_size,optional"`
}

// Load parses path as HCL into a Config and fills in defaults for any
// field the file left zero.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CompressionLevel == 0 {
		c.CompressionLevel = defaultCompressionLevel
	}
	if c.MaxEncodingSize == 0 {
		c.MaxEncodingSize = defaultMaxEncodingSize
	}
}
