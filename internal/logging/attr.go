package logging

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Helpers return an empty Attr for zero values so call sites need no checks.

func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Task(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("task", name)
}

func Port(p uint8) slog.Attr {
	return slog.Int("port", int(p))
}

// Op tags the log lines of one blocking radio operation.
func Op(id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String("op", id.String())
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed reports the time since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
