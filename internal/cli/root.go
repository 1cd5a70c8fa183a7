package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/mavsign/internal/errors"
	"github.com/mrz1836/mavsign/internal/signal"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger is set in PersistentPreRunE and read through GetLogger.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the logger configured from the global flags. Before the
// root command's PersistentPreRunE has run it returns a logger that discards
// everything. It is safe for concurrent use.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// newRootCmd creates the root command for the mavsign CLI.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "mavsign",
		Short: "mavsign - MAVLink 2 message signing",
		Long: `mavsign signs and verifies MAVLink 2 traffic with a pre-shared key.

It applies the MAVLink 2 signing rules to raw frame streams and .tlog
telemetry logs: 48-bit timestamps in 10µs ticks since 2015, per-stream
replay protection keyed by link, system and component id, and a 60 second
window for streams seen for the first time.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			flags.Output = v.GetString("output")
			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v", errors.ErrInvalidOutputFormat, flags.Output, ValidOutputFormats())
			}

			globalLoggerMu.Lock()
			globalLogger = InitLogger(v.GetBool("verbose"), v.GetBool("quiet"))
			globalLoggerMu.Unlock()

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(cmd, flags)

	AddKeygenCommand(cmd, flags)
	AddSignCommand(cmd, flags)
	AddVerifyCommand(cmd, flags)
	AddConfigCommand(cmd)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; frame loops stop at the next frame boundary.
func Execute(ctx context.Context, info BuildInfo) error {
	h := signal.NewHandler(ctx)
	defer h.Stop()

	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	err := cmd.ExecuteContext(h.Context())
	if err != nil {
		printError(cmd.ErrOrStderr(), err)
	}
	if sig := h.Signal(); sig != nil {
		logger := GetLogger()
		logger.Warn().Str("signal", sig.String()).Msg("interrupted")
	}
	CloseLogFile()
	return err
}

// printError reports err on w, followed by a hint when one is known.
func printError(w io.Writer, err error) {
	styles := newOutputStyles()
	_, _ = fmt.Fprintln(w, styles.failure.Render("Error:")+" "+err.Error())

	msg, action := errors.Actionable(err)
	if msg != err.Error() {
		_, _ = fmt.Fprintln(w, "  "+msg)
	}
	if action != "" {
		_, _ = fmt.Fprintln(w, styles.dim.Render("  "+action))
	}
}
