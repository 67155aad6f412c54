package provider

import (
	"errors"
	"fmt"
	"os"
)

// spoolWriter stages outgoing content in a local temp file so that providers
// needing a seekable body with a known length (S3, HTTP PUT) can stream it
// without holding the whole database in memory. Nothing reaches the remote
// side before Close.
type spoolWriter struct {
	f      *os.File
	size   int64
	commit func(f *os.File, size int64) error
	done   bool
}

func newSpool(dir string, commit func(f *os.File, size int64) error) (*spoolWriter, error) {
	f, err := os.CreateTemp(dir, "userdb-spool-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	return &spoolWriter{f: f, commit: commit}, nil
}

func (s *spoolWriter) Write(p []byte) (int, error) {
	if s.done {
		return 0, errors.New("write to closed spool")
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	return n, err
}

// Close uploads the spooled content and removes the temp file.
func (s *spoolWriter) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	defer s.cleanup()

	if _, err := s.f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind spool file: %w", err)
	}
	return s.commit(s.f, s.size)
}

// Abort drops the spooled content without uploading it.
func (s *spoolWriter) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.cleanup()
	return nil
}

func (s *spoolWriter) cleanup() {
	_ = s.f.Close()
	_ = os.Remove(s.f.Name())
}
