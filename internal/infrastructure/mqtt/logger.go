package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// libraryLogger forwards paho's internal printf-style logging to slog.
type libraryLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func (l libraryLogger) Println(v ...interface{}) {
	l.logger.Log(context.Background(), l.level, strings.TrimSpace(fmt.Sprintln(v...)), "source", "paho")
}

func (l libraryLogger) Printf(format string, v ...interface{}) {
	l.logger.Log(context.Background(), l.level, strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "paho")
}

// SetLibraryLogger routes paho's ERROR, CRITICAL and WARN output into logger.
// paho's loggers are package globals, so this affects every client.
func SetLibraryLogger(logger *slog.Logger) {
	pahomqtt.ERROR = libraryLogger{logger: logger, level: slog.LevelError}
	pahomqtt.CRITICAL = libraryLogger{logger: logger, level: slog.LevelError}
	pahomqtt.WARN = libraryLogger{logger: logger, level: slog.LevelWarn}
}
