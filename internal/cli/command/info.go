package command

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/cli/output"
	"github.com/yndnr/filekv/internal/storage/persist"
)

// InfoCommand returns the info command.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "Show the document file, its leftovers and checksum",
		Action: infoAction,
	}
}

// fileInfo is the info command's result.
type fileInfo struct {
	Path        string              `json:"path" yaml:"path"`
	Codec       string              `json:"codec" yaml:"codec"`
	Keys        int                 `json:"keys" yaml:"keys"`
	Clean       bool                `json:"clean" yaml:"clean"`
	Checksum    string              `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	DecodeError string              `json:"decode_error,omitempty" yaml:"decode_error,omitempty"`
	Files       []persist.FileState `json:"files" yaml:"files"`
}

func infoAction(c *cli.Context) error {
	cfg := configFrom(c)
	report, err := persist.Inspect(nil, cfg.Store.Path)
	if err != nil {
		return err
	}

	info := fileInfo{
		Path:     cfg.Store.Path,
		Codec:    cfg.Store.Codec,
		Clean:    report.Clean(),
		Checksum: report.Checksum,
		Files:    []persist.FileState{report.Committed, report.Temp, report.Backup},
	}
	if cfg.Security.Passphrase != "" {
		info.Codec = "sealed+" + info.Codec
	}
	if doc, err := readDocument(c); err != nil {
		info.DecodeError = err.Error()
	} else {
		info.Keys = doc.Len()
	}

	f := formatterFrom(c)
	if _, ok := f.(*output.TableFormatter); !ok {
		return f.Format(stdout(c), info)
	}
	return renderInfo(c, info)
}

func renderInfo(c *cli.Context, info fileInfo) error {
	w := stdout(c)

	table := &output.Table{Headers: []string{"FILE", "PATH", "EXISTS", "SIZE", "MODIFIED"}}
	for i, name := range []string{"committed", "temp", "backup"} {
		st := info.Files[i]
		size, modified := "-", "-"
		if st.Exists {
			size = strconv.FormatInt(st.Size, 10)
			modified = st.ModTime.Format(time.RFC3339)
		}
		table.AddRow(name, st.Path, strconv.FormatBool(st.Exists), size, modified)
	}
	if err := table.Render(w); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Codec:     %s\n", info.Codec)
	if info.DecodeError != "" {
		fmt.Fprintf(w, "Keys:      unreadable (%s)\n", info.DecodeError)
	} else {
		fmt.Fprintf(w, "Keys:      %d\n", info.Keys)
	}
	if info.Checksum != "" {
		fmt.Fprintf(w, "Checksum:  %s\n", info.Checksum)
	}
	if !info.Clean {
		fmt.Fprintln(w, "Leftover temp or backup files found; the next write removes them.")
	}
	return nil
}
