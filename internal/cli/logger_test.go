package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mavsign/internal/constants"
	"github.com/mrz1836/mavsign/internal/logging"
)

func TestInitLoggerWithWriter_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verbose       bool
		quiet         bool
		expectedLevel zerolog.Level
	}{
		{"default is info level", false, false, zerolog.InfoLevel},
		{"verbose enables debug level", true, false, zerolog.DebugLevel},
		{"quiet enables warn level", false, true, zerolog.WarnLevel},
		{"verbose takes precedence over quiet", true, true, zerolog.DebugLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := InitLoggerWithWriter(tc.verbose, tc.quiet, &buf)
			assert.Equal(t, tc.expectedLevel, logger.GetLevel())
			assert.Equal(t, tc.expectedLevel, selectLevel(tc.verbose, tc.quiet))
		})
	}
}

func TestSelectOutput_NonTTY(t *testing.T) {
	// Tests run without a terminal, so output is plain JSON on stderr.
	assert.Equal(t, os.Stderr, selectOutput())

	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, os.Stderr, selectOutput())
}

func TestLogEntryFieldNames(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := InitLoggerWithWriter(false, false, &buf)
	logger.Info().
		Str("verdict", "rejected_replay").
		Uint8("link_id", 3).
		Msg("frame rejected")

	output := buf.String()
	assert.Contains(t, output, `"ts":`)
	assert.Contains(t, output, `"level":"info"`)
	assert.Contains(t, output, `"event":"frame rejected"`)
	assert.Contains(t, output, `"verdict":"rejected_replay"`)
	assert.Contains(t, output, `"link_id":3`)
}

func TestCreateLogFileWriter(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("MAVSIGN_HOME", tmpDir)

	writer, err := createLogFileWriter()
	require.NoError(t, err)

	_, err = writer.Write([]byte(`{"level":"info","event":"test"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	logPath := filepath.Join(tmpDir, constants.LogsDir, constants.CLILogFileName)
	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	path, err := LogFilePath()
	require.NoError(t, err)
	assert.Equal(t, logPath, path)
}

func TestCreateLogFileWriter_FailsOnInvalidPath(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "not_a_directory")
	require.NoError(t, os.WriteFile(filePath, []byte("test"), 0o600))
	t.Setenv("MAVSIGN_HOME", filePath)

	writer, err := createLogFileWriter()
	require.Error(t, err)
	assert.Nil(t, writer)
	assert.Contains(t, err.Error(), "failed to create log directory")
}

func TestInitLogger_WritesToFileWithoutKeys(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("MAVSIGN_HOME", tmpDir)
	logFileWriter = nil

	keyHex := strings.Repeat("0123456789abcdef", 4)
	logger := InitLogger(false, false)
	logger.Info().Str("link", "udp").Msg("loaded key " + keyHex)
	CloseLogFile()

	data, err := os.ReadFile(filepath.Join(tmpDir, constants.LogsDir, constants.CLILogFileName)) //nolint:gosec // test temp dir
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "loaded key")
	assert.Contains(t, content, logging.RedactedValue)
	assert.NotContains(t, content, keyHex)
}

func TestInitLogger_HandlesFileCreationFailure(t *testing.T) {
	t.Setenv("MAVSIGN_HOME", "/dev/null/invalid")
	logFileWriter = nil

	logger := InitLogger(false, false)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	assert.Nil(t, logFileWriter)
}

func TestInitLogger_KeepsOneLogFileOpen(t *testing.T) {
	t.Setenv("MAVSIGN_HOME", t.TempDir())
	t.Cleanup(CloseLogFile)
	logFileWriter = nil

	InitLogger(false, false)
	first := logFileWriter
	require.NotNil(t, first)

	InitLogger(true, false)
	require.NotNil(t, logFileWriter)
	assert.NotSame(t, first, logFileWriter)
}

func TestCloseLogFile_NoOpWhenNil(_ *testing.T) {
	logFileWriter = nil
	CloseLogFile()
}

func TestFilteringWriteCloser(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fwc := &filteringWriteCloser{
		filter: logging.NewFilteringWriter(&buf),
		closer: io.NopCloser(&buf),
	}

	input := []byte(`{"event":"passphrase=hunter2hunter2"}` + "\n")
	n, err := fwc.Write(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.NotContains(t, buf.String(), "hunter2")
	require.NoError(t, fwc.Close())
}

func TestConfigureZerologGlobals_Idempotent(t *testing.T) {
	t.Parallel()

	configureZerologGlobals()
	configureZerologGlobals()

	assert.Equal(t, "ts", zerolog.TimestampFieldName)
	assert.Equal(t, "event", zerolog.MessageFieldName)
}
