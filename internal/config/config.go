// Package config loads tflmconv settings from a YAML file and validates
// them against the CUE definition in schema.cue.
//
// Example:
//
//	reference: /opt/tflm/micro_mutable_op_resolver.h
//	output_dir: include
//	arena_size: 60000
//	casing_corrections:
//	  - from: Gru
//	    to: GRU
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/tflm-esp32/tflmconv/internal/codegen"
	"github.com/tflm-esp32/tflmconv/internal/mangle"
)

//go:embed schema.cue
var schemaSource string

// ReferenceFileName is the reference header looked up next to the binary
// when no reference path is configured.
const ReferenceFileName = "micro_mutable_op_resolver.h"

// Config holds converter settings.
type Config struct {
	// Reference is the TFLM micro_mutable_op_resolver.h to verify against.
	Reference string `json:"reference" yaml:"reference"`
	// OutputDir receives generated headers.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	// ArenaSize is the tensor arena size cited in the header usage comment.
	ArenaSize    int `json:"arena_size" yaml:"arena_size"`
	BytesPerLine int `json:"bytes_per_line" yaml:"bytes_per_line"`
	// VendorPrefixes are stripped from operator names before mangling.
	VendorPrefixes []string `json:"vendor_prefixes" yaml:"vendor_prefixes"`
	// CasingCorrections extend mangle.DefaultCorrections.
	CasingCorrections mangle.Corrections `json:"casing_corrections" yaml:"casing_corrections"`
	// History is an optional SQLite database recording conversions.
	History string `json:"history" yaml:"history"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Reference:         DefaultReferencePath(),
		OutputDir:         ".",
		ArenaSize:         codegen.ArenaSize(codegen.DefaultArenaEstimate),
		BytesPerLine:      codegen.DefaultBytesPerLine,
		VendorPrefixes:    append([]string(nil), mangle.DefaultVendorPrefixes...),
		CasingCorrections: mangle.Corrections{},
	}
}

// DefaultReferencePath returns ReferenceFileName in the directory of the
// running executable, or in the working directory if that is unknown.
func DefaultReferencePath() string {
	exe, err := os.Executable()
	if err != nil {
		return ReferenceFileName
	}
	return filepath.Join(filepath.Dir(exe), ReferenceFileName)
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidationError reports a config that does not satisfy #Config.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Details
}

// Validate checks c against the #Config definition.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	v := ctx.Encode(c.normalized())
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}

// normalized returns a copy with nil lists replaced by empty ones, which
// CUE would otherwise encode as null.
func (c *Config) normalized() Config {
	out := *c
	if out.VendorPrefixes == nil {
		out.VendorPrefixes = []string{}
	}
	if out.CasingCorrections == nil {
		out.CasingCorrections = mangle.Corrections{}
	}
	return out
}

// Mangler returns a mangler honoring the configured prefixes and corrections.
func (c *Config) Mangler() *mangle.Mangler {
	return mangle.New(
		mangle.WithVendorPrefixes(c.VendorPrefixes...),
		mangle.WithCorrections(c.CasingCorrections),
	)
}
