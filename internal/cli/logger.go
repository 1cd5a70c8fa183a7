package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrz1836/mavsign/internal/config"
	"github.com/mrz1836/mavsign/internal/constants"
	"github.com/mrz1836/mavsign/internal/logging"
)

var (
	// logFileWriter is the open rotating log file, closed by CloseLogFile.
	logFileWriter io.WriteCloser //nolint:gochecknoglobals // Needed for cleanup

	zerologConfigOnce sync.Once //nolint:gochecknoglobals // One-time configuration

	// zerologGlobalMu guards log.Logger. It is separate from globalLoggerMu.
	zerologGlobalMu sync.Mutex //nolint:gochecknoglobals // Protects zerolog global
)

// configureZerologGlobals shortens the timestamp and message field names.
func configureZerologGlobals() {
	zerologConfigOnce.Do(func() {
		zerolog.TimestampFieldName = "ts"
		zerolog.MessageFieldName = "event"
	})
}

// newLogger builds the CLI logger on w and makes it the zerolog global too.
func newLogger(level zerolog.Level, w io.Writer) zerolog.Logger {
	configureZerologGlobals()

	logger := zerolog.New(w).
		Level(level).
		Hook(logging.NewSensitiveDataHook()).
		With().Timestamp().Logger()

	zerologGlobalMu.Lock()
	log.Logger = logger
	zerologGlobalMu.Unlock()

	return logger
}

// InitLogger creates the CLI logger from the verbosity flags.
//
// Verbose selects debug level, which logs every rejected frame; quiet
// selects warn; the default is info. Output goes to stderr, human-readable
// on a terminal without NO_COLOR and JSON otherwise, and is copied to
// ~/.mavsign/logs/mavsign.log with rotation. When the log file cannot be
// opened the logger carries on with stderr alone.
func InitLogger(verbose, quiet bool) zerolog.Logger {
	var w io.Writer = selectOutput()

	if fileWriter, err := createLogFileWriter(); err == nil {
		CloseLogFile()
		logFileWriter = fileWriter
		w = zerolog.MultiLevelWriter(w, fileWriter)
	}

	return newLogger(selectLevel(verbose, quiet), w)
}

// InitLoggerWithWriter creates the CLI logger on w alone, without a log file.
// Tests use it to capture output.
func InitLoggerWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	return newLogger(selectLevel(verbose, quiet), w)
}

// CloseLogFile closes the log file if InitLogger opened one.
func CloseLogFile() {
	if logFileWriter != nil {
		_ = logFileWriter.Close()
		logFileWriter = nil
	}
}

func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func selectOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" { //nolint:gosec // fd fits in int
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return os.Stderr
}

// filteringWriteCloser redacts key material on its way into the log file.
type filteringWriteCloser struct {
	filter *logging.FilteringWriter
	closer io.Closer
}

func (fwc *filteringWriteCloser) Write(p []byte) (int, error) {
	return fwc.filter.Write(p)
}

func (fwc *filteringWriteCloser) Close() error {
	return fwc.closer.Close()
}

// createLogFileWriter opens the rotating log file, creating its directory.
func createLogFileWriter() (io.WriteCloser, error) {
	logPath, err := LogFilePath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    constants.LogMaxSizeMB,
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays,
		Compress:   constants.LogCompress,
	}
	return &filteringWriteCloser{filter: logging.NewFilteringWriter(lj), closer: lj}, nil
}

// LogFilePath returns the path to the CLI log file.
func LogFilePath() (string, error) {
	home, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.LogsDir, constants.CLILogFileName), nil
}
