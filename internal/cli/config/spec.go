package config

import (
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/yndnr/filekv/internal/cli/output"
	"github.com/yndnr/filekv/internal/kverr"
	"github.com/yndnr/filekv/internal/storage/codec"
	"github.com/yndnr/filekv/internal/telemetry/logger"
)

// CLIConfig is the configuration for the filekv CLI.
type CLIConfig struct {
	Store    StoreConfig    `koanf:"store" yaml:"store"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Security SecurityConfig `koanf:"security" yaml:"security"`

	// Output is the default output format (table, json, jsonl, yaml).
	Output string `koanf:"output" yaml:"output"`
}

// StoreConfig locates and encodes the document file.
type StoreConfig struct {
	Path          string        `koanf:"path" yaml:"path"`
	Codec         string        `koanf:"codec" yaml:"codec"`
	FlushInterval time.Duration `koanf:"flush_interval" yaml:"flush_interval"`
	FileMode      string        `koanf:"file_mode" yaml:"file_mode"` // octal, e.g. "0600"
}

// LogConfig configures diagnostics written to stderr.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// SecurityConfig configures at-rest sealing. An empty passphrase stores the
// document in clear.
type SecurityConfig struct {
	Passphrase string `koanf:"passphrase" yaml:"passphrase"`
}

// Default file name used when no path is configured.
const DefaultStorePath = "filekv.json"

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Store: StoreConfig{
			Path:     DefaultStorePath,
			Codec:    codec.NameJSON,
			FileMode: "0600",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Output: string(output.FormatTable),
	}
}

// Verify checks the configuration for invalid values.
func (c *CLIConfig) Verify() error {
	if c.Store.Path == "" {
		return kverr.ErrConfig.WithDetails("store.path is required")
	}
	if _, err := codec.ByName(c.Store.Codec); err != nil {
		return kverr.ErrConfig.Wrapf(err, "store.codec")
	}
	if c.Store.FlushInterval < 0 {
		return kverr.ErrConfig.WithDetails("store.flush_interval must not be negative")
	}
	if _, err := c.Store.Mode(); err != nil {
		return err
	}
	if !logger.ValidLevel(c.Log.Level) {
		return kverr.ErrConfig.WithDetails(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text", "console":
	default:
		return kverr.ErrConfig.WithDetails(fmt.Sprintf("log.format %q is not one of json, text", c.Log.Format))
	}
	if _, err := output.ParseFormat(c.Output); err != nil {
		return kverr.ErrConfig.Wrapf(err, "output")
	}
	return nil
}

// Mode parses FileMode. An empty value yields 0, the store default.
func (s StoreConfig) Mode() (fs.FileMode, error) {
	if s.FileMode == "" {
		return 0, nil
	}
	m, err := strconv.ParseUint(s.FileMode, 8, 32)
	if err != nil || m > 0777 {
		return 0, kverr.ErrConfig.WithDetails(fmt.Sprintf("store.file_mode %q is not an octal permission", s.FileMode))
	}
	return fs.FileMode(m), nil
}

// NewCodec builds the configured codec, sealed when a passphrase is set.
func (c *CLIConfig) NewCodec() (codec.Codec, error) {
	inner, err := codec.ByName(c.Store.Codec)
	if err != nil {
		return nil, kverr.ErrConfig.Wrapf(err, "store.codec")
	}
	if c.Security.Passphrase == "" {
		return inner, nil
	}
	sealed, err := codec.NewSealed(inner, c.Security.Passphrase)
	if err != nil {
		return nil, kverr.ErrConfig.Wrapf(err, "security.passphrase")
	}
	return sealed, nil
}
