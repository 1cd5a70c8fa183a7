package cli

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/mavsign/internal/clock"
	"github.com/mrz1836/mavsign/internal/config"
	"github.com/mrz1836/mavsign/internal/crypto"
	"github.com/mrz1836/mavsign/internal/crypto/native"
	"github.com/mrz1836/mavsign/internal/errors"
	"github.com/mrz1836/mavsign/internal/metrics"
	"github.com/mrz1836/mavsign/internal/signing"
)

// metricsShutdownTimeout bounds how long the metrics server may take to drain.
const metricsShutdownTimeout = 5 * time.Second

// signingFlags are the per-command overrides of the signing section.
type signingFlags struct {
	linkID        int
	allowUnsigned bool
	signOutgoing  bool
	keyFile       string
}

// addSigningFlags registers the signing overrides that make sense for cmd.
// inbound adds --allow-unsigned, outbound adds --link-id and --sign-outgoing.
func addSigningFlags(cmd *cobra.Command, f *signingFlags, inbound, outbound bool) {
	cmd.Flags().StringVar(&f.keyFile, "key-file", "", "hex key file (default ~/.mavsign/keys/signing.key)")
	if inbound {
		cmd.Flags().BoolVar(&f.allowUnsigned, "allow-unsigned", false, "accept frames that carry no signature")
	}
	if outbound {
		cmd.Flags().IntVar(&f.linkID, "link-id", 0, "link id written into signed frames (0-255)")
		cmd.Flags().BoolVar(&f.signOutgoing, "sign-outgoing", true, "flag and sign every MAVLink 2 frame")
	}
}

// overrides returns only the flags the user actually set, so that config
// files and environment variables still apply to the rest.
func (f *signingFlags) overrides(cmd *cobra.Command, global *GlobalFlags) config.Overrides {
	var o config.Overrides
	if cmd.Flags().Changed("link-id") {
		o.LinkID = &f.linkID
	}
	if cmd.Flags().Changed("allow-unsigned") {
		o.AllowUnsigned = &f.allowUnsigned
	}
	if cmd.Flags().Changed("sign-outgoing") {
		o.SignOutgoing = &f.signOutgoing
	}
	if cmd.Flags().Changed("key-file") {
		o.KeyFile = &f.keyFile
	}
	if global != nil && global.MetricsAddr != "" {
		o.MetricsListen = &global.MetricsAddr
	}
	return o
}

// session is everything a frame-processing command shares across its
// connections: configuration, key, clock and metrics.
type session struct {
	cfg     *config.Config
	key     crypto.SecretKey
	clock   clock.Clock
	metrics *metrics.Signing
	logger  zerolog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// openSession loads configuration and the signing key, then starts the
// background NTP sync and metrics server when configured. Callers must
// Close the session.
func openSession(ctx context.Context, overrides config.Overrides, logger zerolog.Logger) (*session, error) {
	cfg, err := config.LoadWithOverrides(logger.WithContext(ctx), overrides)
	if err != nil {
		return nil, err
	}

	key, err := loadKey(ctx, cfg.Signing)
	if err != nil {
		return nil, err
	}

	bgCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(bgCtx)
	s := &session{
		cfg:     cfg,
		key:     key,
		clock:   clock.RealClock{},
		metrics: metrics.New(),
		logger:  logger,
		cancel:  cancel,
		group:   g,
	}

	if cfg.Clock.UsesNTP() {
		ntpClock := clock.NewNTPClock(cfg.Clock.NTPServer, cfg.Clock.SyncInterval, logger)
		if err := ntpClock.Sync(ctx); err != nil {
			logger.Warn().Err(err).Str("server", cfg.Clock.NTPServer).
				Msg("initial NTP sync failed, using the system clock until it succeeds")
		}
		s.clock = ntpClock
		g.Go(func() error {
			ntpClock.Run(gctx)
			return nil
		})
	}

	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		if err := s.metrics.Register(reg); err != nil {
			cancel()
			return nil, errors.Wrap(err, "registering metrics")
		}
		ln, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			cancel()
			return nil, errors.Wrapf(err, "listening on %s", cfg.Metrics.Listen)
		}
		logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
		g.Go(func() error {
			return serveMetrics(gctx, ln, reg)
		})
	}

	return s, nil
}

// Close stops the background work and waits for it to finish.
func (s *session) Close() error {
	s.cancel()
	return s.group.Wait()
}

// signingConfig converts the loaded configuration for one connection.
func (s *session) signingConfig() signing.Config {
	return signing.NewConfig(
		s.key,
		uint8(s.cfg.Signing.LinkID), //nolint:gosec // range checked by config.Validate
		s.cfg.Signing.SignOutgoing,
		s.cfg.Signing.AllowUnsigned,
	)
}

// newSigner returns a fresh signing context for one connection. The returned
// connection metrics must be closed when the connection ends.
func (s *session) newSigner(clk clock.Clock) (*signing.Context, *metrics.Connection) {
	if clk == nil {
		clk = s.clock
	}
	rec := s.metrics.Connection()
	return signing.FromConfig(s.signingConfig(),
		signing.WithClock(clk),
		signing.WithLogger(s.logger),
		signing.WithRecorder(rec),
	), rec
}

// loadKey derives the key from a passphrase when passphrase_env is set and
// reads the key file otherwise.
func loadKey(ctx context.Context, cfg config.SigningConfig) (crypto.SecretKey, error) {
	if cfg.PassphraseEnv != "" {
		passphrase := os.Getenv(cfg.PassphraseEnv)
		if passphrase == "" {
			return crypto.SecretKey{}, errors.Wrapf(errors.ErrKeyNotLoaded, "%s is not set", cfg.PassphraseEnv)
		}
		return crypto.FromPassphrase(passphrase), nil
	}

	km, err := newKeyManager(cfg)
	if err != nil {
		return crypto.SecretKey{}, err
	}
	if err := km.Load(ctx); err != nil {
		return crypto.SecretKey{}, err
	}
	return km.Key()
}

func newKeyManager(cfg config.SigningConfig) (*native.KeyManager, error) {
	path, err := cfg.ResolveKeyFile()
	if err != nil {
		return nil, err
	}
	return native.NewKeyManager(path)
}

// serveMetrics serves /metrics on ln until ctx is done.
func serveMetrics(ctx context.Context, ln net.Listener, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
