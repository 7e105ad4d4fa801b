// Package publish writes rendered pages to their destinations: a local
// file, an S3 bucket, or both.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink is a destination for the rendered page.
type Sink interface {
	// Name identifies the sink in logs and metrics ("file", "s3").
	Name() string
	// Put replaces the published page.
	Put(ctx context.Context, page []byte) error
}

// FileSink writes the page to a local path.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path. Parent directories are
// created on first write.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Name returns "file".
func (s *FileSink) Name() string { return "file" }

// Path returns the destination path.
func (s *FileSink) Path() string { return s.path }

// Put writes to a temp file in the destination directory and renames it
// over the target, so readers never see a partial page.
func (s *FileSink) Put(_ context.Context, page []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dirs for %s: %w", s.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".crypshare-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(page); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", s.path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", s.path, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", s.path, err)
	}
	return nil
}

// WriterSink copies the page to an io.Writer, such as stdout.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Name returns "writer".
func (s *WriterSink) Name() string { return "writer" }

// Put writes the page.
func (s *WriterSink) Put(_ context.Context, page []byte) error {
	_, err := s.w.Write(page)
	return err
}
