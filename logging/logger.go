package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/rdebug/config"
	"github.com/grovetools/rdebug/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	entry := build(component, logCfg, os.Getenv, os.Stderr)
	loggers[component] = entry
	return entry
}

// build assembles a logger from an explicit configuration. stderr is the
// sink used when structured logs are routed to the terminal.
func build(component string, logCfg Config, getenv func(string) string, stderr *os.File) *logrus.Entry {
	logger := logrus.New()

	levelStr := "info"
	if v := getenv("RDEBUG_LOG_LEVEL"); v != "" {
		levelStr = v
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if getenv("RDEBUG_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}, Origin: jobOrigin(getenv)})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format, Origin: jobOrigin(getenv)})
	}

	var writers []io.Writer

	if logCfg.File.Enabled {
		logFilePath := expandPath(logCfg.File.Path)
		if logFilePath == "" {
			logFilePath = defaultLogFile(component, time.Now())
		}
		if logFilePath != "" {
			if file, err := openLogFile(logFilePath); err != nil {
				logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
			} else {
				writers = append(writers, file)
			}
		}
	}

	if shouldLogToStderr(logCfg.Format.StructuredToStderr, logger.GetLevel(), getenv, stderr) {
		writers = append(writers, stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

// shouldLogToStderr resolves the structured_to_stderr mode. In "auto" mode
// structured logs reach stderr when debugging or when stderr is not a
// terminal (batch jobs, CI), and stay quiet in interactive use.
func shouldLogToStderr(mode string, level logrus.Level, getenv func(string) string, stderr *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}

	isDebug := getenv("RDEBUG_DEBUG") == "1" || level >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(stderr.Fd()) || isatty.IsCygwinTerminal(stderr.Fd())
	return isDebug || !isInteractive
}

func defaultLogFile(component string, now time.Time) string {
	dir := paths.LogDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.log", component, now.Format("2006-01-02")))
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
