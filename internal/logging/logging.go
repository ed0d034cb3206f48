package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config interface {
	GetEnv() string
	GetAppName() string
	GetLogLevel() string
	GetLogFile() string
	GetLogMaxSizeMB() int
}

// New builds the process logger and installs it as the zerolog global.
// DEV gets a console writer on stderr; other environments log JSON. When a
// log file is configured its output is rotated by lumberjack.
func New(c Config) zerolog.Logger {
	var w io.Writer = os.Stderr
	if c.GetEnv() == "DEV" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	if path := c.GetLogFile(); path != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    c.GetLogMaxSizeMB(),
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("app", c.GetAppName()).
		Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}
