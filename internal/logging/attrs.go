package logging

import (
	"log/slog"
	"time"
)

// Attr is re-exported so call sites avoid importing log/slog directly.
type Attr = slog.Attr

// Field names shared across components so log lines stay greppable.
const (
	FieldComponent = "component"
	FieldFile      = "file"
	FieldStage     = "stage"
	FieldEventType = "event_type"
)

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}
