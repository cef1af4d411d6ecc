package logutil

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var logLevel atomic.Int32

func init() {
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// ParseLevel maps a LOG_LEVEL value to a Level; unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel changes the threshold, e.g. after a .env file was loaded.
func SetLevel(s string) {
	logLevel.Store(int32(ParseLevel(s)))
}

// Enabled reports whether messages at l are printed.
func Enabled(l Level) bool {
	return Level(logLevel.Load()) <= l
}

func Debugf(format string, v ...interface{}) {
	if Enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func Infof(format string, v ...interface{}) {
	if Enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

func Warnf(format string, v ...interface{}) {
	if Enabled(LevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

func Errorf(format string, v ...interface{}) {
	log.Printf("[ERROR] "+format, v...)
}
