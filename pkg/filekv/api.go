package filekv

import (
	"github.com/yndnr/filekv/internal/kverr"
	"github.com/yndnr/filekv/internal/storage/codec"
	"github.com/yndnr/filekv/internal/storage/persist"
)

// Codec converts a document to its on-disk form and back.
type Codec = codec.Codec

// Codecs shipped with filekv.
type (
	// JSON is the default codec. Set Indent to pretty-print the file.
	JSON = codec.JSON
	// YAML stores the document as a YAML mapping.
	YAML = codec.YAML
)

// CodecByName returns the plain codec named "json" or "yaml".
func CodecByName(name string) (Codec, error) {
	return codec.ByName(name)
}

// NewSealedCodec encrypts the output of inner with a key derived from
// passphrase.
func NewSealedCodec(inner Codec, passphrase string) (Codec, error) {
	s, err := codec.NewSealed(inner, passphrase)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FS is the filesystem a Store writes through.
type FS = persist.FS

// Stats describes persistence progress.
type Stats = persist.Stats

// Error is the coded error type returned by a Store. Compare with errors.Is
// against the values below.
type Error = kverr.Error

// Errors returned by a Store.
var (
	ErrConfig             = kverr.ErrConfig
	ErrInvalidKey         = kverr.ErrInvalidKey
	ErrUnsupportedValue   = kverr.ErrUnsupportedValue
	ErrPathConflict       = kverr.ErrPathConflict
	ErrDecode             = kverr.ErrDecode
	ErrPersistenceFailure = kverr.ErrPersistenceFailure
	ErrClosed             = kverr.ErrClosed
)
