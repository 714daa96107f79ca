// Package logging provides leveled log lines on top of the standard logger.
// Debug lines are only written when verbose mode is enabled.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu      sync.RWMutex
	logFile *os.File
	verbose bool
)

// Init routes log output to stderr and, when logPath is set, to an
// append-only log file as well.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	writers := []io.Writer{os.Stderr}
	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close restores stderr output and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// SetOutput replaces the log destination. Useful for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(w)
}

// SetVerbose enables or disables debug lines.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether debug lines are enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// Debug logs only in verbose mode.
func Debug(format string, args ...any) {
	if IsVerbose() {
		log.Printf("[DEBUG] "+format, args...)
	}
}

func Info(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

func Warn(format string, args ...any) {
	log.Printf("[WARN] "+format, args...)
}

func Error(format string, args ...any) {
	log.Printf("[ERROR] "+format, args...)
}
