package logstream

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const rotateInterval = 5 * time.Minute

// nowString is the timestamp suffix of log file names.
func nowString() string {
	return time.Now().Format("20060102_1504")
}

// makeDateDir ensures a date-named directory below base exists and returns
// its path.
func makeDateDir(base string) (string, error) {
	now := time.Now()
	dirName := fmt.Sprintf("%d_%02d_%02d", now.Year(), now.Month(), now.Day())
	fullPath := filepath.Join(base, dirName)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return "", fmt.Errorf("create log directory: %w", err)
		}
	}
	return fullPath, nil
}

// InitFile points the standard logger at a timestamped file below base.
func InitFile(base, prefix string) error {
	log.SetPrefix("")
	log.SetFlags(log.Lmicroseconds)

	dir, err := makeDateDir(base)
	if err != nil {
		return err
	}
	logPath := filepath.Join(dir, fmt.Sprintf("%s%s.log", prefix, nowString()))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return nil
}

// InitAndRotate sets up file logging and re-targets the standard logger to a
// fresh timestamped file every few minutes.
func InitAndRotate(base, prefix string) {
	if err := InitFile(base, prefix); err != nil {
		log.Printf("log file setup failed: %v", err)
	}
	go func() {
		ticker := time.NewTicker(rotateInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := InitFile(base, prefix); err != nil {
				log.Printf("log rotation failed: %v", err)
			}
		}
	}()
}
