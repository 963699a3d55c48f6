// Package log is the process-wide diagnostic logger: a zerolog console
// writer on stderr, plus an optional append-only diagnostics file once a
// log directory is configured.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

var (
	logMu    sync.Mutex
	logger   zerolog.Logger
	diagFile *os.File
	dir      string
)

func init() {
	logger = zerolog.New(console(os.Stderr)).
		With().Timestamp().Int("pid", os.Getpid()).Logger().
		Level(zerolog.InfoLevel)
}

func console(f *os.File) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        f,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    !term.IsTerminal(int(f.Fd())),
	}
}

// SetVerbose enables debug-level output.
func SetVerbose(on bool) {
	logMu.Lock()
	defer logMu.Unlock()
	level := zerolog.InfoLevel
	if on {
		level = zerolog.DebugLevel
	}
	logger = logger.Level(level)
}

// ResolveDir picks the log directory: the -logpath flag wins, then the
// KEYHOLD_LOG_PATH environment variable, then the OS cache directory.
// Relative paths are anchored at the working directory.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("KEYHOLD_LOG_PATH")} {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) {
			return p, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, p), nil
	}

	cache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cache, "keyhold"), nil
}

func SetDir(d string) {
	logMu.Lock()
	dir = d
	logMu.Unlock()
}

func Dir() string {
	logMu.Lock()
	defer logMu.Unlock()
	return dir
}

// Init opens the diagnostics file in the configured directory and tees
// output to it alongside stderr. Safe to skip entirely: without Init the
// logger still writes to stderr.
func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, "diagnostics_log.txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	diagFile = f

	fileWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	logger = zerolog.New(zerolog.MultiLevelWriter(console(os.Stderr), fileWriter)).
		With().Timestamp().Int("pid", os.Getpid()).Logger().
		Level(logger.GetLevel())
	return nil
}

// SetupFile resolves the log directory from flagPath and enables the
// diagnostics file. Failures never abort the process: they are logged as
// warnings and the logger stays on stderr.
func SetupFile(flagPath string) {
	d, err := ResolveDir(flagPath)
	if err != nil {
		Warnf("file logging disabled: %v", err)
		return
	}
	SetDir(d)
	if err := Init(); err != nil {
		Warnf("file logging disabled: %v", err)
	}
}

// Close releases the diagnostics file. Idempotent; stderr logging keeps
// working afterwards.
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile == nil {
		return
	}
	diagFile.Close()
	diagFile = nil
	logger = zerolog.New(console(os.Stderr)).
		With().Timestamp().Int("pid", os.Getpid()).Logger().
		Level(logger.GetLevel())
}

func current() *zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	l := logger
	return &l
}

func Info(msg string) { current().Info().Msg(msg) }

func Infof(format string, args ...any) { current().Info().Msgf(format, args...) }

func Warn(msg string) { current().Warn().Msg(msg) }

func Warnf(format string, args ...any) { current().Warn().Msgf(format, args...) }

func Error(msg string) { current().Error().Msg(msg) }

func Errorf(format string, args ...any) { current().Error().Msgf(format, args...) }

func Debugf(format string, args ...any) { current().Debug().Msgf(format, args...) }

// Device records a device lifecycle event (added, removed, lost).
func Device(action, name, path string) {
	ev := current().Info()
	if name != "" {
		ev = ev.Str("name", name)
	}
	ev.Str("path", path).Msg(action)
}

// Shortcut records an edge transition of the configured combination.
func Shortcut(edge, combo string) {
	current().Info().Str("combo", combo).Msg(edge)
}
