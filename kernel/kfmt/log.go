package kfmt

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
)

var (
	earlyMu  sync.Mutex
	earlyBuf LogBuffer[byte]

	logger atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(NewLogger(os.Stderr, slog.LevelInfo))
}

// earlyWriter serializes writes into the early log buffer.
type earlyWriter struct{}

func (earlyWriter) Write(p []byte) (int, error) {
	earlyMu.Lock()
	defer earlyMu.Unlock()
	return earlyBuf.Write(p)
}

// NewLogger returns a logger that writes colorless tint-formatted records to
// w and keeps a copy of every record in the early log buffer.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(tint.NewHandler(io.MultiWriter(w, earlyWriter{}), &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    true,
	}))
}

// NewConsoleLogger returns a logger suitable for an interactive terminal.
func NewConsoleLogger(w io.Writer, level slog.Leveler, color bool) *slog.Logger {
	return slog.New(tint.NewHandler(io.MultiWriter(w, earlyWriter{}), &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !color,
	}))
}

// Logger returns the active boot logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the active boot logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// DrainEarlyLog copies the unread contents of the early log buffer to w.
func DrainEarlyLog(w io.Writer) (int64, error) {
	earlyMu.Lock()
	defer earlyMu.Unlock()

	var (
		total int64
		chunk [512]byte
	)
	for {
		n, err := earlyBuf.Read(chunk[:])
		if n > 0 {
			wn, werr := w.Write(chunk[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
	}
}
