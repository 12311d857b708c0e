package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and destinations of every logger created after
// Configure.
type Options struct {
	Level  string
	Format string
	// Output defaults to stdout.
	Output io.Writer
	// File mirrors every line to a rotated file when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	outputMu sync.RWMutex
	output   io.Writer
)

func currentOutput() io.Writer {
	outputMu.RLock()
	defer outputMu.RUnlock()
	if output == nil {
		return consoleWriter("", nil)
	}
	return output
}

// Configure applies o globally. The returned closer releases the log file.
func Configure(o Options) (io.Closer, error) {
	if err := SetLevel(o.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	w := consoleWriter(o.Format, o.Output)
	var closer io.Closer = nopCloser{}
	if o.File != "" {
		if dir := filepath.Dir(o.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		lj := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
		}
		w = zerolog.MultiLevelWriter(w, lj)
		closer = lj
	}
	outputMu.Lock()
	output = w
	outputMu.Unlock()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
