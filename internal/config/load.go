package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/mavsign/internal/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAVSIGN"

// newViperInstance creates a Viper instance with defaults, the MAVSIGN_ env
// prefix and dotted keys mapped to underscores.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults mirrors DefaultConfig. Every key must be set here for
// AutomaticEnv to see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("signing.link_id", d.Signing.LinkID)
	v.SetDefault("signing.sign_outgoing", d.Signing.SignOutgoing)
	v.SetDefault("signing.allow_unsigned", d.Signing.AllowUnsigned)
	v.SetDefault("signing.key_file", d.Signing.KeyFile)
	v.SetDefault("signing.passphrase_env", d.Signing.PassphraseEnv)

	v.SetDefault("clock.source", d.Clock.Source)
	v.SetDefault("clock.ntp_server", d.Clock.NTPServer)
	v.SetDefault("clock.sync_interval", d.Clock.SyncInterval.String())

	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

func isConfigNotFoundError(err error) bool {
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// Load reads configuration from every source with the precedence described
// in the package documentation. Missing config files are not an error.
func Load(ctx context.Context) (*Config, error) {
	globalPath, err := GlobalConfigPath()
	if err != nil {
		// No home directory: skip the global layer.
		globalPath = ""
	}
	return LoadFromPaths(ctx, ProjectConfigPath(), globalPath)
}

// LoadFromPaths loads configuration from specific files. Either path may be
// empty or point at a missing file to skip that layer.
func LoadFromPaths(ctx context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if err := mergeConfigFile(v, globalConfigPath); err != nil {
		return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "config").
		Int("signing.link_id", cfg.Signing.LinkID).
		Bool("signing.sign_outgoing", cfg.Signing.SignOutgoing).
		Bool("signing.allow_unsigned", cfg.Signing.AllowUnsigned).
		Str("clock.source", cfg.Clock.Source).
		Msg("configuration loaded")

	return cfg, nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil //nolint:nilerr // a missing layer is skipped
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return err
	}
	return nil
}

func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// viperDecoderOption lets durations be written as "10m".
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}

// Overrides are CLI flag values. Only fields set to non-nil are applied.
type Overrides struct {
	LinkID        *int
	AllowUnsigned *bool
	SignOutgoing  *bool
	KeyFile       *string
	MetricsListen *string
}

// LoadWithOverrides loads configuration and then applies CLI flag overrides,
// which take precedence over every other source.
func LoadWithOverrides(ctx context.Context, overrides Overrides) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, overrides)
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.LinkID != nil {
		cfg.Signing.LinkID = *o.LinkID
	}
	if o.AllowUnsigned != nil {
		cfg.Signing.AllowUnsigned = *o.AllowUnsigned
	}
	if o.SignOutgoing != nil {
		cfg.Signing.SignOutgoing = *o.SignOutgoing
	}
	if o.KeyFile != nil {
		cfg.Signing.KeyFile = *o.KeyFile
	}
	if o.MetricsListen != nil {
		cfg.Metrics.Listen = *o.MetricsListen
	}
}
