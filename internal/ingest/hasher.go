// Package ingest streams uploads to disk while hashing them.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUploadTooLarge is returned when an upload exceeds the configured limit.
var ErrUploadTooLarge = errors.New("upload too large")

// Upload is a spooled upload: the temp file on disk, its sha256 digest
// in hex, and the total byte count.
type Upload struct {
	Path   string
	Digest string
	Size   int64
}

// SaveUpload copies r into a temp file under dir, hashing as it goes.
// If the stream exceeds maxBytes the partial file is removed and
// ErrUploadTooLarge is returned; no artifact is left behind on any
// failure path.
func SaveUpload(r io.Reader, dir string, maxBytes int64) (*Upload, error) {
	tmp, err := os.CreateTemp(dir, "upload-*.bin")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(r, maxBytes+1))
	if err == nil && n > maxBytes {
		err = ErrUploadTooLarge
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temp: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}

	return &Upload{
		Path:   tmp.Name(),
		Digest: hex.EncodeToString(h.Sum(nil)),
		Size:   n,
	}, nil
}
