// Package logging configures the shared logrus instance used throughout the
// client: a compact custom formatter and, optionally, rotation to disk via
// lumberjack. There is no coupling to any HTTP framework — this SDK never runs
// a server, so the gin-flavored writer plumbing the teacher needed does not
// apply here.
package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/otterbroker/zetaclient/internal/config"
)

var (
	setupOnce sync.Once
	writerMu  sync.Mutex
	fileWriter *lumberjack.Logger
)

// fieldOrder controls which structured fields are rendered, and in what order,
// after the message text.
var fieldOrder = []string{"trace_id", "sub_id", "provider", "error"}

// formatter renders one log line as:
//
//	[2026-02-14 09:31:02] [info ] [engine.go:88] message field=value
type formatter struct{}

func (formatter) Format(entry *log.Entry) ([]byte, error) {
	buf := entry.Buffer
	if buf == nil {
		buf = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	var fields strings.Builder
	for _, key := range fieldOrder {
		if v, ok := entry.Data[key]; ok {
			fields.WriteString(" ")
			fields.WriteString(fmt.Sprintf("%s=%v", key, v))
		}
	}

	if entry.Caller != nil {
		fmt.Fprintf(buf, "[%s] [%-5s] [%s:%d] %s%s\n", timestamp, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message, fields.String())
	} else {
		fmt.Fprintf(buf, "[%s] [%-5s] %s%s\n", timestamp, level, message, fields.String())
	}
	return buf.Bytes(), nil
}

// Setup installs the formatter and caller reporting on the global logrus
// logger. Safe to call repeatedly; it only takes effect once.
func Setup() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(formatter{})
	})
}

// Configure switches the log destination between stdout and a rotating file,
// per cfg.LogFile / cfg.LogsMaxTotalSizeMB.
func Configure(cfg *config.Config) error {
	Setup()

	writerMu.Lock()
	defer writerMu.Unlock()

	if cfg == nil || strings.TrimSpace(cfg.LogFile) == "" {
		if fileWriter != nil {
			_ = fileWriter.Close()
			fileWriter = nil
		}
		stopDirCleanerLocked()
		log.SetOutput(os.Stdout)
		return nil
	}

	dir := filepath.Dir(cfg.LogFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("logging: create log directory: %w", err)
		}
	}
	if fileWriter != nil {
		_ = fileWriter.Close()
	}
	fileWriter = &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10,
		MaxBackups: 5,
		Compress:   true,
	}
	log.SetOutput(fileWriter)

	configureDirCleanerLocked(dir, cfg.LogsMaxTotalSizeMB, cfg.LogFile)
	return nil
}

// Close flushes and releases any file-backed log writer and stops the
// background directory cleaner, if one is running.
func Close() {
	writerMu.Lock()
	defer writerMu.Unlock()
	stopDirCleanerLocked()
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
}
