package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log   *zap.Logger
	Sugar *zap.SugaredLogger

	mu      sync.Mutex
	logFile *os.File
)

// Options controls where the logger writes and at which level.
type Options struct {
	// Level is a zap level name ("debug", "info", ...). Empty falls back to
	// P2P_LOG_LEVEL, then LOG_LEVEL, then info.
	Level string
	// File, when set, receives a copy of every line (appended).
	File string
}

func init() {
	if err := Setup(Options{}); err != nil {
		panic(err)
	}
}

// Setup rebuilds Log and Sugar from opts. A log file opened by an earlier
// call is closed once the new logger is in place.
func Setup(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006/01/02 15:04:05"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	level := parseLevel(opts.Level)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	var file *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return err
		}
		var err error
		file, err = os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(file), level))
	}

	// AddCaller ensures the log includes filename and line number
	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	Sugar = Log.Sugar()

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	return nil
}

func parseLevel(s string) zapcore.Level {
	level := zapcore.InfoLevel
	levelStr := strings.TrimSpace(s)
	if levelStr == "" {
		levelStr = strings.TrimSpace(os.Getenv("P2P_LOG_LEVEL"))
	}
	if levelStr == "" {
		levelStr = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	}
	if levelStr != "" {
		_ = level.UnmarshalText([]byte(strings.ToLower(levelStr)))
	}
	return level
}
