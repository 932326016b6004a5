package config

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// nopCloser is returned when no file sink is opened
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LogWriter builds the application log sink described by cfg.
// The returned closer flushes and closes the rotating file, if any.
func LogWriter(cfg LoggingConfig) (io.Writer, io.Closer) {
	if cfg.Output == "stdout" || cfg.Output == "" {
		return os.Stdout, nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	if cfg.Output == "both" {
		return io.MultiWriter(os.Stdout, rotator), rotator
	}
	return rotator, rotator
}

// SetupLogging points the standard logger at the configured sink
func SetupLogging(cfg LoggingConfig) io.Closer {
	w, closer := LogWriter(cfg)
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags | log.LUTC)
	return closer
}
