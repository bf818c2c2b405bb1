package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/repository"
)

const writeTimeout = 5 * time.Second

type Entry struct {
	Level     model.LogLevel
	Component string
	Message   string
	Err       error
	Fields    map[string]interface{}
}

// Logger appends SystemLogEntry rows and mirrors each one to zerolog.
// When the row cannot be written the zerolog line is all that remains.
type Logger struct {
	repo repository.SystemLogRepository
}

func NewLogger(repo repository.SystemLogRepository) *Logger {
	return &Logger{repo: repo}
}

func (l *Logger) Log(ctx context.Context, entry Entry) {
	var details *string
	if entry.Err != nil {
		s := entry.Err.Error()
		details = &s
	}

	logEvent := zerologEvent(entry.Level).
		Str("component", entry.Component)
	if entry.Err != nil {
		logEvent = logEvent.Err(entry.Err)
	}
	for k, v := range entry.Fields {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg(entry.Message)

	if l == nil || l.repo == nil {
		return
	}

	// The entry outlives the request that produced it.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	_, err := l.repo.Create(writeCtx, model.CreateSystemLogParams{
		LogLevel:     entry.Level,
		Component:    entry.Component,
		Message:      entry.Message,
		ErrorDetails: details,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("component", entry.Component).
			Str("original_message", entry.Message).
			Msg("failed to persist system log entry")
	}
}

func (l *Logger) Info(ctx context.Context, component, message string) {
	l.Log(ctx, Entry{Level: model.LogLevelInfo, Component: component, Message: message})
}

func (l *Logger) Warning(ctx context.Context, component, message string) {
	l.Log(ctx, Entry{Level: model.LogLevelWarning, Component: component, Message: message})
}

func (l *Logger) Error(ctx context.Context, component, message string, err error) {
	l.Log(ctx, Entry{Level: model.LogLevelError, Component: component, Message: message, Err: err})
}

func (l *Logger) Critical(ctx context.Context, component, message string, err error) {
	l.Log(ctx, Entry{Level: model.LogLevelCritical, Component: component, Message: message, Err: err})
}

func zerologEvent(level model.LogLevel) *zerolog.Event {
	switch level {
	case model.LogLevelWarning:
		return log.Warn()
	case model.LogLevelError:
		return log.Error()
	case model.LogLevelCritical:
		// Fatal would exit; critical entries are logged at error with a marker.
		return log.Error().Bool("critical", true)
	default:
		return log.Info()
	}
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
