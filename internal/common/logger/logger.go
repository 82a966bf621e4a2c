package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ============================================================
// Logger
// ============================================================

// Log is shared by every package of a binary. Until Init runs it logs at
// info level to stderr.
var Log = logrus.New()

type appNameHook struct {
	appName string
}

func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Message = "[" + h.appName + "] " + entry.Message
	return nil
}

// Init prefixes every message with the app name and sets the level
// ("debug", "info", ...). An unknown level falls back to info.
func Init(appName, level string) {
	Log.SetOutput(os.Stdout)

	level = strings.ToLower(level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Log.Warnf("Invalid LOG_LEVEL '%s', defaulting to INFO", level)
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	Log.ReplaceHooks(make(logrus.LevelHooks))
	Log.AddHook(&appNameHook{appName})
}
