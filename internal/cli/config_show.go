package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/mavsign/internal/config"
	"github.com/mrz1836/mavsign/internal/errors"
)

// Config show formats.
const (
	formatText = "text"
	formatYAML = "yaml"
	formatJSON = "json"
)

// ConfigShowFlags holds flags specific to the config show command.
type ConfigShowFlags struct {
	// Format is text (annotated), yaml or json.
	Format string
}

// AddConfigCommand adds the config command and its subcommands.
func AddConfigCommand(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect mavsign configuration",
	}
	AddConfigShowCommand(cmd)
	root.AddCommand(cmd)
}

// AddConfigShowCommand adds the show subcommand to the config command.
func AddConfigShowCommand(configCmd *cobra.Command) {
	flags := &ConfigShowFlags{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display the effective configuration and where each value comes from:
  - default: Built-in default value
  - global: From ~/.mavsign/config.yaml
  - project: From .mavsign/config.yaml
  - env: From a MAVSIGN_* environment variable

The signing key itself is never shown, only where it is read from.

Examples:
  mavsign config show
  mavsign config show --format yaml
  mavsign config show --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.Format, "format", formatText, "output format (text, yaml or json)")

	configCmd.AddCommand(cmd)
}

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value is a built-in default.
	SourceDefault ConfigSource = "default"
	// SourceGlobal indicates the value came from global config.
	SourceGlobal ConfigSource = "global"
	// SourceProject indicates the value came from project config.
	SourceProject ConfigSource = "project"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
)

// ConfigValueWithSource represents a configuration value with its source.
type ConfigValueWithSource struct {
	Value  any          `json:"value" yaml:"value"`
	Source ConfigSource `json:"source" yaml:"source"`
}

// AnnotatedConfig is the effective configuration with source annotations.
type AnnotatedConfig struct {
	Signing map[string]ConfigValueWithSource `json:"signing" yaml:"signing"`
	Clock   map[string]ConfigValueWithSource `json:"clock" yaml:"clock"`
	Metrics map[string]ConfigValueWithSource `json:"metrics" yaml:"metrics"`
}

// annotatedKeys fixes the display order of each section.
var annotatedKeys = map[string][]string{ //nolint:gochecknoglobals // display order
	"signing": {"link_id", "sign_outgoing", "allow_unsigned", "key_file", "passphrase_env"},
	"clock":   {"source", "ntp_server", "sync_interval"},
	"metrics": {"listen"},
}

// configShowStyles contains styling for the config show command output.
type configShowStyles struct {
	header    lipgloss.Style
	section   lipgloss.Style
	key       lipgloss.Style
	value     lipgloss.Style
	sourceEnv lipgloss.Style
	sourcePrj lipgloss.Style
	sourceGbl lipgloss.Style
	sourceDef lipgloss.Style
	dim       lipgloss.Style
}

// newConfigShowStyles creates styles for config show command output.
func newConfigShowStyles() *configShowStyles {
	return &configShowStyles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D7FF")).
			MarginBottom(1),
		section: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")),
		key: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D7FF")),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")),
		sourceEnv: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")), // Red for env (highest precedence)
		sourcePrj: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")), // Yellow for project
		sourceGbl: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF87")), // Green for global
		sourceDef: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")), // Gray for default
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}

// runConfigShow executes the config show command.
func runConfigShow(ctx context.Context, w io.Writer, flags *ConfigShowFlags) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	logger := GetLogger()
	cfg, err := config.Load(logger.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	annotated := buildAnnotatedConfig(cfg)

	switch strings.ToLower(flags.Format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(annotated)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case formatText:
		return outputAnnotated(w, annotated)
	default:
		return errors.NewExitCode2Error(
			fmt.Errorf("%w: %s (use text, yaml or json)", errors.ErrInvalidOutputFormat, flags.Format))
	}
}

// buildAnnotatedConfig pairs each effective value with the layer it came from.
func buildAnnotatedConfig(cfg *config.Config) *AnnotatedConfig {
	globalCfg := loadGlobalConfigOnly()
	projectCfg := loadProjectConfigOnly()

	src := func(key string, value any) ConfigValueWithSource {
		return determineSource(key, value, globalCfg, projectCfg)
	}

	return &AnnotatedConfig{
		Signing: map[string]ConfigValueWithSource{
			"link_id":        src("signing.link_id", cfg.Signing.LinkID),
			"sign_outgoing":  src("signing.sign_outgoing", cfg.Signing.SignOutgoing),
			"allow_unsigned": src("signing.allow_unsigned", cfg.Signing.AllowUnsigned),
			"key_file":       src("signing.key_file", displayKeyFile(cfg.Signing)),
			"passphrase_env": src("signing.passphrase_env", cfg.Signing.PassphraseEnv),
		},
		Clock: map[string]ConfigValueWithSource{
			"source":        src("clock.source", cfg.Clock.Source),
			"ntp_server":    src("clock.ntp_server", cfg.Clock.NTPServer),
			"sync_interval": src("clock.sync_interval", cfg.Clock.SyncInterval.String()),
		},
		Metrics: map[string]ConfigValueWithSource{
			"listen": src("metrics.listen", cfg.Metrics.Listen),
		},
	}
}

// displayKeyFile shows where the key is read from, resolving the default.
func displayKeyFile(cfg config.SigningConfig) string {
	path, err := cfg.ResolveKeyFile()
	if err != nil {
		return cfg.KeyFile
	}
	return path
}

// configValues holds a config file's values keyed by dotted path.
type configValues map[string]any

// loadGlobalConfigOnly loads only the global config for source comparison.
func loadGlobalConfigOnly() configValues {
	path, err := config.GlobalConfigPath()
	if err != nil {
		return nil
	}
	return loadConfigFile(path)
}

// loadProjectConfigOnly loads only the project config for source comparison.
func loadProjectConfigOnly() configValues {
	return loadConfigFile(config.ProjectConfigPath())
}

// loadConfigFile reads a YAML config file into dotted keys. Unreadable or
// malformed files yield nil.
func loadConfigFile(path string) configValues {
	data, err := os.ReadFile(path) //nolint:gosec // Config file path
	if err != nil {
		return nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}

	result := make(configValues)
	flatten("", doc, result)
	return result
}

func flatten(prefix string, m map[string]any, out configValues) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// determineSource determines where a configuration value came from.
func determineSource(key string, value any, globalCfg, projectCfg configValues) ConfigValueWithSource {
	envKey := config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if envVal := os.Getenv(envKey); envVal != "" {
		return ConfigValueWithSource{Value: value, Source: SourceEnv}
	}
	if _, exists := projectCfg[key]; exists {
		return ConfigValueWithSource{Value: value, Source: SourceProject}
	}
	if _, exists := globalCfg[key]; exists {
		return ConfigValueWithSource{Value: value, Source: SourceGlobal}
	}
	return ConfigValueWithSource{Value: value, Source: SourceDefault}
}

// outputAnnotated prints the configuration with a source comment per value.
func outputAnnotated(w io.Writer, annotated *AnnotatedConfig) error {
	styles := newConfigShowStyles()

	_, _ = fmt.Fprintln(w, styles.header.Render("Effective mavsign configuration"))
	_, _ = fmt.Fprintln(w, styles.dim.Render("Sources: ")+
		styles.sourceEnv.Render("env")+" > "+
		styles.sourcePrj.Render("project")+" > "+
		styles.sourceGbl.Render("global")+" > "+
		styles.sourceDef.Render("default"))
	_, _ = fmt.Fprintln(w)

	sections := []struct {
		name   string
		values map[string]ConfigValueWithSource
	}{
		{"signing", annotated.Signing},
		{"clock", annotated.Clock},
		{"metrics", annotated.Metrics},
	}
	for _, sec := range sections {
		_, _ = fmt.Fprintln(w, styles.section.Render(sec.name+":"))
		for _, key := range annotatedKeys[sec.name] {
			printConfigValue(w, styles, "  "+key, sec.values[key])
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintln(w, styles.dim.Render("Configuration files:"))
	if globalPath, err := config.GlobalConfigPath(); err == nil {
		printConfigFile(w, styles, "Global", globalPath, styles.sourceGbl)
	}
	projectPath := config.ProjectConfigPath()
	if abs, err := filepath.Abs(projectPath); err == nil {
		projectPath = abs
	}
	printConfigFile(w, styles, "Project", projectPath, styles.sourcePrj)

	return nil
}

func printConfigFile(w io.Writer, styles *configShowStyles, label, path string, style lipgloss.Style) {
	if _, err := os.Stat(path); err == nil {
		_, _ = fmt.Fprintln(w, styles.dim.Render("  "+label+": ")+style.Render(path))
		return
	}
	_, _ = fmt.Fprintln(w, styles.dim.Render("  "+label+": ")+styles.dim.Render(path+" (not found)"))
}

// printConfigValue prints a configuration value with its source annotation.
func printConfigValue(w io.Writer, styles *configShowStyles, key string, vs ConfigValueWithSource) {
	_, _ = fmt.Fprintf(w, "%s: %s  %s\n",
		styles.key.Render(key),
		styles.value.Render(formatConfigValue(vs.Value)),
		getSourceStyle(vs.Source, styles).Render("# "+string(vs.Source)))
}

// formatConfigValue converts a configuration value to a displayable string.
func formatConfigValue(value any) string {
	if s, ok := value.(string); ok {
		if s == "" {
			return "(not set)"
		}
		return s
	}
	return fmt.Sprintf("%v", value)
}

// getSourceStyle returns the appropriate style for a config source.
func getSourceStyle(source ConfigSource, styles *configShowStyles) lipgloss.Style {
	switch source {
	case SourceEnv:
		return styles.sourceEnv
	case SourceProject:
		return styles.sourcePrj
	case SourceGlobal:
		return styles.sourceGbl
	case SourceDefault:
		return styles.sourceDef
	default:
		return styles.sourceDef
	}
}
