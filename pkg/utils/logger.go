package utils

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Logger тонкая printf-обертка над zerolog
type Logger struct {
	zl zerolog.Logger
}

var defaultLogger *Logger

func init() {
	defaultLogger = NewLogger("info")
}

// NewLogger создает логгер с уровнем debug|info|warn|error
func NewLogger(levelStr string) *Logger {
	var level zerolog.Level
	switch levelStr {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	zl := zerolog.New(writer).Level(level).With().Timestamp().Logger()

	return &Logger{zl: zl}
}

// WithComponent возвращает логгер с меткой компонента
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, v...))
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, v...))
}

// Глобальные функции для кода, выполняющегося до сборки логгера
func LogInfo(msg string) {
	defaultLogger.Info(msg)
}

func LogWarn(msg string) {
	defaultLogger.Warn(msg)
}
