// Package log is the process wide structured logger, a thin layer over a
// zap SugaredLogger. It is usable before Init, logging errors to stderr.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"

	FormatConsole = "console"
	FormatJSON    = "json"
)

// logTestWriterName is a special output name used by tests to capture the
// log lines into logTestWriter.
const logTestWriterName = "testwriter"

var logTestWriter io.Writer = io.Discard

// Options configures the logger.
type Options struct {
	// Level is one of the LogLevel* names. Unknown names mean info.
	Level string
	// Output is stdout, stderr or a file path.
	Output string
	// Format is FormatConsole (default) or FormatJSON.
	Format string
	// ErrorFile, if set, also receives the warning and error lines.
	ErrorFile string
}

var (
	mu    sync.Mutex
	opts  Options
	log   *zap.SugaredLogger
	level = LogLevelError
)

func init() {
	// $LOG_LEVEL overrides the default level, also when running tests.
	lvl := LogLevelError
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		lvl = s
	}
	Init(lvl, "stderr")
}

// Logger returns the underlying zap logger.
func Logger() *zap.SugaredLogger { return log }

// Level returns the current log level name.
func Level() string { return level }

// Init initializes a console logger. Output can be either "stdout/stderr/filePath".
func Init(logLevel string, output string) {
	if err := Configure(Options{Level: logLevel, Output: output}); err != nil {
		panic(err)
	}
}

// SetFileErrorLog also writes the warning and error lines to path.
func SetFileErrorLog(path string) error {
	mu.Lock()
	o := opts
	mu.Unlock()
	o.ErrorFile = path
	return Configure(o)
}

// Configure replaces the logger.
func Configure(o Options) error {
	if o.Format == "" {
		o.Format = FormatConsole
	}
	if o.Format != FormatConsole && o.Format != FormatJSON {
		return fmt.Errorf("unknown log format %q", o.Format)
	}
	lvl := levelFromString(o.Level)
	out, err := openSink(o.Output)
	if err != nil {
		return err
	}
	core := zapcore.NewCore(newEncoder(o.Format, o.Output), out, lvl)
	if o.ErrorFile != "" {
		f, err := os.OpenFile(o.ErrorFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		errLevel := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.WarnLevel && lvl.Enabled(l)
		})
		core = zapcore.NewTee(core, zapcore.NewCore(newEncoder(FormatConsole, o.ErrorFile),
			zapcore.Lock(f), errLevel))
	}
	logger := zap.New(zapcore.NewSamplerWithOptions(core, time.Second, 100, 100),
		zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	defer mu.Unlock()
	opts = o
	level = o.Level
	log = logger.Sugar()
	log.Debugw("logger ready", "level", o.Level, "output", o.Output, "format", o.Format)
	return nil
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case logTestWriterName:
		return zapcore.AddSync(logTestWriter), nil
	case "", "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log output: %w", err)
	}
	return zapcore.Lock(f), nil
}

func newEncoder(format, output string) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	// colors only for terminals
	if output == "stdout" || output == "stderr" || output == "" {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func levelFromString(logLevel string) zapcore.Level {
	switch logLevel {
	case LogLevelDebug:
		return zap.DebugLevel
	case LogLevelWarn:
		return zap.WarnLevel
	case LogLevelError:
		return zap.ErrorLevel
	case LogLevelFatal:
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

func Debug(args ...any) { log.Debug(args...) }
func Info(args ...any)  { log.Info(args...) }
func Warn(args ...any)  { log.Warn(args...) }
func Error(args ...any) { log.Error(args...) }

// Fatal logs and exits the process.
func Fatal(args ...any) {
	log.Fatal(args...)
	panic("unreachable")
}

func Debugf(template string, args ...any) { log.Debugf(template, args...) }
func Infof(template string, args ...any)  { log.Infof(template, args...) }
func Warnf(template string, args ...any)  { log.Warnf(template, args...) }
func Errorf(template string, args ...any) { log.Errorf(template, args...) }

// Fatalf logs and exits the process.
func Fatalf(template string, args ...any) {
	log.Fatalf(template, args...)
	panic("unreachable")
}

func Debugw(msg string, keysAndValues ...any) { log.Debugw(msg, keysAndValues...) }
func Infow(msg string, keysAndValues ...any)  { log.Infow(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...any)  { log.Warnw(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...any) { log.Errorw(msg, keysAndValues...) }

// Fatalw logs and exits the process.
func Fatalw(msg string, keysAndValues ...any) {
	log.Fatalw(msg, keysAndValues...)
	panic("unreachable")
}
