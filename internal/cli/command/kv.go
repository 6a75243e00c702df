package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/cli/repl"
)

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value or subtree at KEY",
		ArgsUsage: "KEY",
		Action:    getAction,
	}
}

// PutCommand returns the put command.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Aliases:   []string{"set"},
		Usage:     "Set KEY to VALUE, parsed as JSON when possible",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "string",
				Aliases: []string{"s"},
				Usage:   "Store VALUE as a string without parsing it",
			},
		},
		Action: putAction,
	}
}

// RemoveCommand returns the rm command.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"remove", "del"},
		Usage:     "Remove KEY",
		ArgsUsage: "KEY",
		Action:    removeAction,
	}
}

// DumpCommand returns the dump command.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:   "dump",
		Usage:  "Print the whole document",
		Action: dumpAction,
	}
}

func getAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: get KEY")
	}
	key := c.Args().First()

	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	v, ok, err := doc.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: not found", key)
	}
	return formatterFrom(c).Format(stdout(c), v)
}

func putAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: put [--string] KEY VALUE")
	}
	key, raw := c.Args().Get(0), c.Args().Get(1)

	var value any = raw
	if !c.Bool("string") {
		value = repl.ParseValue(raw)
	}

	s, err := openStore(c)
	if err != nil {
		return err
	}
	return closeStore(s, s.Put(key, value))
}

func removeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: rm KEY")
	}

	s, err := openStore(c)
	if err != nil {
		return err
	}
	return closeStore(s, s.Remove(c.Args().First()))
}

func dumpAction(c *cli.Context) error {
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	return formatterFrom(c).Format(stdout(c), doc.Snapshot())
}
