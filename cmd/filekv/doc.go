// Package main provides the entry point for filekv.
//
// filekv reads and writes a nested key/value document kept in a single
// file. Keys are dot paths; values are parsed as JSON when possible:
//
//	filekv -f app.json put server.port 8080
//	filekv -f app.json get server
//	filekv -f app.json -o yaml dump
//	filekv -f app.json watch server.port
//	filekv -f app.json shell
//
// Every write goes through a temp file, fsync and rename, keeping the
// previous document as app.json~~ until the new one is committed.
// A failed write exits non-zero.
package main
