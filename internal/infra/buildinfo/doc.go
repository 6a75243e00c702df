// Package buildinfo exposes version information about the filekv binary.
//
// Release builds inject values with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/filekv/internal/infra/buildinfo.Version=v1.0.0"
//
// When Commit is not injected it is taken from the VCS stamp the Go
// toolchain records in the binary.
package buildinfo
