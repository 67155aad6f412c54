// Package cryptox computes content digests of database files as they are
// streamed between the local cache and an external document.
package cryptox

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Sum is a BLAKE2b-256 digest.
type Sum [blake2b.Size256]byte

// String returns the lowercase hex form of the digest.
func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// Short returns the first 12 hex characters, enough for log lines.
func (s Sum) Short() string {
	return s.String()[:12]
}

// Digest is an io.Writer that accumulates a BLAKE2b-256 digest. It is meant
// to sit on the side of a copy via io.TeeReader or io.MultiWriter.
type Digest struct {
	h hash.Hash
}

// NewDigest returns an empty Digest.
func NewDigest() *Digest {
	// New256 only fails for keys longer than 64 bytes.
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	return &Digest{h: h}
}

func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Sum returns the digest of everything written so far.
func (d *Digest) Sum() Sum {
	var s Sum
	copy(s[:], d.h.Sum(nil))
	return s
}

// SumBytes returns the digest of b.
func SumBytes(b []byte) Sum {
	return blake2b.Sum256(b)
}

// SumFile streams the file at path through the digest.
func SumFile(path string) (Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, err
	}
	defer f.Close()

	d := NewDigest()
	if _, err := io.Copy(d, f); err != nil {
		return Sum{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return d.Sum(), nil
}
