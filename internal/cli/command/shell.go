package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/cli/repl"
)

// ShellCommand returns the shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell on the document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "Where to keep shell history; empty disables it",
				Value: repl.DefaultHistoryPath(),
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}

	opts := []repl.Option{
		repl.WithOutput(stdout(c)),
		repl.WithFormatter(formatterFrom(c)),
		repl.WithHistory(repl.NewHistory(c.String("history-file"))),
	}
	if c.App.Reader != nil {
		opts = append(opts, repl.WithInput(c.App.Reader))
	}

	return closeStore(s, repl.New(s, opts...).Run())
}
