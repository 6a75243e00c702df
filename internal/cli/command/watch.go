package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/cli/output"
	"github.com/yndnr/filekv/internal/infra/filewatch"
	"github.com/yndnr/filekv/internal/infra/shutdown"
	"github.com/yndnr/filekv/internal/storage/document"
	"github.com/yndnr/filekv/pkg/filekv"
)

// shutdownTimeout bounds the hooks run when watch stops.
const shutdownTimeout = 10 * time.Second

// absent is printed while the watched key does not exist.
const absent = "<absent>"

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Print KEY now and after every commit of the file, until interrupted",
		ArgsUsage: "KEY",
		Action:    watchAction,
	}
}

func watchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: watch KEY")
	}
	key := c.Args().First()
	if _, err := document.ParsePath(key); err != nil {
		return err
	}

	cfg := configFrom(c)
	codec, err := cfg.NewCodec()
	if err != nil {
		return err
	}
	log := loggerFrom(c).With("path", cfg.Store.Path, "key", key)
	w := stdout(c)

	var (
		mu      sync.Mutex
		last    string
		printed bool
		stopped bool
	)
	show := func() {
		root, err := filekv.Load(cfg.Store.Path, codec)
		if err != nil {
			log.Warn("reload failed", "error", err)
			return
		}
		line := absent
		if doc, err := document.FromMap(root); err == nil {
			if v, ok := doc.Lookup(key); ok {
				line = output.FormatLeaf(v)
			}
		}

		mu.Lock()
		defer mu.Unlock()
		if stopped || (printed && line == last) {
			return
		}
		last, printed = line, true
		fmt.Fprintln(w, line)
	}

	watcher, err := filewatch.New(filewatch.WithLogger(log))
	if err != nil {
		return err
	}
	if err := watcher.Watch(cfg.Store.Path); err != nil {
		watcher.Stop()
		return err
	}
	watcher.OnChange(func(string) { show() })
	watcher.StartAsync()

	handler := shutdown.NewHandler(shutdownTimeout)
	handler.OnShutdown(func(ctx context.Context) error {
		mu.Lock()
		stopped = true
		mu.Unlock()
		return watcher.Stop()
	})

	show()
	log.Debug("watching")
	return handler.Wait(c.Context)
}
