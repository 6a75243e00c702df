package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/cli/config"
	"github.com/yndnr/filekv/internal/cli/output"
	"github.com/yndnr/filekv/internal/infra/buildinfo"
	"github.com/yndnr/filekv/internal/storage/document"
	"github.com/yndnr/filekv/internal/telemetry/logger"
	"github.com/yndnr/filekv/pkg/filekv"
)

const configKey = "config"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "filekv",
		Usage:   "Read and write a nested key/value document stored in a single file",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			PutCommand(),
			RemoveCommand(),
			DumpCommand(),
			InfoCommand(),
			WatchCommand(),
			ShellCommand(),
			VersionCommand(),
		},
		Before: setup,
	}
}

// globalFlags returns the global CLI flags. Flags without a value leave
// the configured setting alone.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file (default ~/.filekv/config.yaml)",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Document file (default " + config.DefaultStorePath + ")",
			EnvVars: []string{"FILEKV_FILE"},
		},
		&cli.StringFlag{
			Name:  "codec",
			Usage: "On-disk format: json, yaml",
		},
		&cli.DurationFlag{
			Name:  "flush-interval",
			Usage: "Minimum time between two writes of the file",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, jsonl, yaml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "passphrase",
			Usage:   "Seal the document with a key derived from this passphrase",
			EnvVars: []string{"FILEKV_PASSPHRASE"},
		},
	}
}

// flagOverrides maps the global flags that were given to config keys.
func flagOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	for flag, key := range map[string]string{
		"file":       "store.path",
		"codec":      "store.codec",
		"output":     "output",
		"log-level":  "log.level",
		"passphrase": "security.passphrase",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if c.IsSet("flush-interval") {
		overrides["store.flush_interval"] = c.Duration("flush-interval")
	}
	return overrides
}

// setup resolves the configuration and installs the logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), flagOverrides(c))
	if err != nil {
		return err
	}
	if err := cfg.Verify(); err != nil {
		return err
	}

	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: errOut,
	})

	log.Debug("configuration resolved",
		"config", c.String("config"),
		"store", cfg.Store.Path,
		"codec", cfg.Store.Codec,
		"sealed", cfg.Security.Passphrase != "")

	c.App.Metadata[configKey] = cfg
	c.Context = logger.WithLogger(c.Context, log)
	return nil
}

// configFrom returns the configuration resolved by setup.
func configFrom(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[configKey].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

func loggerFrom(c *cli.Context) *slog.Logger {
	return logger.FromContext(c.Context)
}

func formatterFrom(c *cli.Context) output.Formatter {
	format, err := output.ParseFormat(configFrom(c).Output)
	if err != nil {
		format = output.FormatTable
	}
	return output.NewFormatter(format)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// openStore opens the configured document for writing.
func openStore(c *cli.Context) (*filekv.Store, error) {
	cfg := configFrom(c)
	codec, err := cfg.NewCodec()
	if err != nil {
		return nil, err
	}
	mode, err := cfg.Store.Mode()
	if err != nil {
		return nil, err
	}

	log := loggerFrom(c)
	return filekv.New(filekv.Config{
		Path:             cfg.Store.Path,
		Codec:            codec,
		FileMode:         mode,
		MinFlushInterval: cfg.Store.FlushInterval,
		Logger:           log,
		OnFatal: func(err error) {
			log.Error("persistence failure, document changes are no longer saved", "error", err)
		},
	})
}

// readDocument loads the configured document without opening a store.
func readDocument(c *cli.Context) (*document.Document, error) {
	cfg := configFrom(c)
	codec, err := cfg.NewCodec()
	if err != nil {
		return nil, err
	}
	root, err := filekv.Load(cfg.Store.Path, codec)
	if err != nil {
		return nil, err
	}
	return document.FromMap(root)
}

// closeStore closes s, keeping the first of err and the close error.
func closeStore(s *filekv.Store, err error) error {
	if cerr := s.Close(); cerr != nil && err == nil {
		return fmt.Errorf("save %s: %w", s.Path(), cerr)
	}
	return err
}
