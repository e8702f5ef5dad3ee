package main

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "backup_monitor.log"

// newLogger logs to stderr and to a rotating file in logDir.
func newLogger(logDir string, debug bool) (*log.Logger, error) {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil, err
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFileName),
		MaxSize:    1, // megabytes
		MaxBackups: 5,
	}

	logger := log.New()
	logger.SetOutput(io.MultiWriter(os.Stderr, rotating))
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	logger.SetLevel(log.InfoLevel)
	if debug {
		logger.SetLevel(log.DebugLevel)
	}

	return logger, nil
}
