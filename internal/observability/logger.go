package observability

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rahul/consolenano/pkg/config"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan       EventType = "plan"
	EventTypeStep       EventType = "step"
	EventTypeLLM        EventType = "llm"
	EventTypeAdaptation EventType = "adaptation"
	EventTypeHighlight  EventType = "highlight"
	EventTypeHeartbeat  EventType = "heartbeat"
)

// Logger is a zap logger with helpers for the assistant's typed events.
// Every event carries an "event" field so the JSON log can be filtered by type.
type Logger struct {
	*zap.Logger
}

// NewLogger builds a console core writing to console and, when cfg.File is
// set, a JSON core rotated by lumberjack.
func NewLogger(cfg config.LoggingConfig, console io.Writer) *Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}
	if console == nil {
		console = os.Stderr
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(cfg.Format), zapcore.Lock(zapcore.AddSync(console)), level),
	}
	if cfg.File != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), rotated, level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("consolenano")
	return &Logger{Logger: l}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Wrap adapts an existing zap logger, e.g. one from zaptest.
func Wrap(l *zap.Logger) *Logger {
	if l == nil {
		return NewNop()
	}
	return &Logger{Logger: l}
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	if format == "json" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

func (l *Logger) event(t EventType, msg string, fields ...zap.Field) {
	l.Info(msg, append([]zap.Field{zap.String("event", string(t))}, fields...)...)
}

func (l *Logger) LogPlan(taskID, prompt string, steps int, tier string) {
	l.event(EventTypePlan, "plan generated",
		zap.String("task_id", taskID),
		zap.String("prompt", prompt),
		zap.Int("steps", steps),
		zap.String("tier", tier),
	)
}

func (l *Logger) LogStep(taskID string, step, total int, description string) {
	l.event(EventTypeStep, "step completed",
		zap.String("task_id", taskID),
		zap.Int("step", step),
		zap.Int("total", total),
		zap.String("description", description),
	)
}

// LogLLM records one oracle exchange. Prompts are logged at debug level only
// since they embed page content.
func (l *Logger) LogLLM(kind, prompt, response string, err error) {
	fields := []zap.Field{
		zap.String("event", string(EventTypeLLM)),
		zap.String("kind", kind),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(response)),
	}
	if err != nil {
		l.Warn("oracle call failed", append(fields, zap.Error(err))...)
		return
	}
	l.Info("oracle call", fields...)
	if ce := l.Check(zap.DebugLevel, "oracle exchange"); ce != nil {
		ce.Write(zap.String("prompt", prompt), zap.String("response", response))
	}
}

func (l *Logger) LogAdaptation(taskID string, step int, adapted bool, reason string) {
	l.event(EventTypeAdaptation, "adaptation check",
		zap.String("task_id", taskID),
		zap.Int("step", step),
		zap.Bool("adapted", adapted),
		zap.String("reason", reason),
	)
}

func (l *Logger) LogHighlight(tabID string, selectors []string, found bool) {
	l.event(EventTypeHighlight, "highlight requested",
		zap.String("tab", tabID),
		zap.String("selectors", strings.Join(selectors, " OR ")),
		zap.Bool("found", found),
	)
}

func (l *Logger) LogHeartbeat() {
	phase, task, _ := GetStatus()
	l.Debug("heartbeat",
		zap.String("event", string(EventTypeHeartbeat)),
		zap.String("phase", string(phase)),
		zap.String("task", task),
	)
}
