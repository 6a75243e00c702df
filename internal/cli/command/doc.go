// Package command provides the filekv CLI commands.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: application, global flags, configuration and logger setup
//   - kv.go: get, put, rm and dump
//   - info.go: on-disk state of the document file
//   - watch.go: print a key each time the file is committed
//   - shell.go: interactive REPL
//   - version.go: build information
//
// Commands write results to App.Writer and diagnostics to App.ErrWriter.
// Mutating commands close the store before returning, so a persistence
// failure becomes the command's error.
package command
