// Package cli provides the command-line interface for mavsign.
package cli

import (
	stderrors "errors"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/mavsign/internal/config"
	"github.com/mrz1836/mavsign/internal/errors"
)

// Exit codes for the CLI.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitError indicates a general error, including rejected frames under --fail-on-reject.
	ExitError = 1
	// ExitInvalidInput indicates invalid user input.
	ExitInvalidInput = 2
)

// Output format constants.
const (
	// OutputText is the default human-readable output format.
	OutputText = "text"
	// OutputJSON is the machine-readable JSON output format.
	OutputJSON = "json"
)

// GlobalFlags holds flags available to all commands.
type GlobalFlags struct {
	// Output specifies the output format (text or json).
	Output string
	// Verbose enables debug-level logging, including every rejected frame.
	Verbose bool
	// Quiet suppresses non-essential output (warn level only).
	Quiet bool
	// MetricsAddr serves Prometheus metrics on this address, overriding metrics.listen.
	MetricsAddr string
}

// AddGlobalFlags adds global flags to a command.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", OutputText, "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.PersistentFlags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// BindGlobalFlags binds global flags to Viper so they can also be set via
// MAVSIGN_OUTPUT, MAVSIGN_VERBOSE and MAVSIGN_QUIET.
func BindGlobalFlags(v *viper.Viper, cmd *cobra.Command) error {
	// Look the flags up on the root so this works from a subcommand's
	// PersistentPreRunE.
	rootFlags := cmd.Root().PersistentFlags()

	for _, name := range []string{"output", "verbose", "quiet"} {
		if err := v.BindPFlag(name, rootFlags.Lookup(name)); err != nil {
			return err
		}
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	return nil
}

// ValidOutputFormats lists the values accepted by --output.
func ValidOutputFormats() []string {
	return []string{OutputText, OutputJSON}
}

// IsValidOutputFormat reports whether format is accepted by --output.
func IsValidOutputFormat(format string) bool {
	return slices.Contains(ValidOutputFormats(), format)
}

// usageErrorFragments identify cobra's own flag and argument errors, which
// carry no sentinel.
var usageErrorFragments = []string{ //nolint:gochecknoglobals // fixed list
	"unknown flag",
	"unknown shorthand flag",
	"flag needs an argument",
	"invalid argument",
	"if any flags in the group",
	"required flag",
	"unknown command",
	"accepts ",
	"requires at least",
}

// ExitCodeForError maps err to the process exit code: ExitSuccess for nil,
// ExitInvalidInput for usage mistakes and ExitError for everything else,
// rejected frames included.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.IsExitCode2Error(err),
		stderrors.Is(err, errors.ErrInvalidOutputFormat),
		stderrors.Is(err, errors.ErrNoInput),
		isInvalidInputError(err.Error()):
		return ExitInvalidInput
	default:
		return ExitError
	}
}

func isInvalidInputError(errMsg string) bool {
	return slices.ContainsFunc(usageErrorFragments, func(fragment string) bool {
		return strings.Contains(errMsg, fragment)
	})
}
