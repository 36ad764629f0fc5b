// Package logging points the standard logger at a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotatingWriter returns a writer that rotates path at 64MB and keeps
// compressed backups for two weeks
func NewRotatingWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename: path,
		MaxSize:  64, // MB
		MaxAge:   14,
		Compress: true,
	}
}

// Setup sends log output to stderr and, when path is set, to a rotating
// file as well. The returned closer releases the file.
func Setup(prefix, path string) io.Closer {
	log.SetPrefix(prefix)
	log.SetFlags(log.LstdFlags | log.LUTC)

	if path == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	w := NewRotatingWriter(path)
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	return w
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
