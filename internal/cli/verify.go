package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/mavsign/internal/clock"
	"github.com/mrz1836/mavsign/internal/errors"
	"github.com/mrz1836/mavsign/internal/link"
	"github.com/mrz1836/mavsign/internal/mavlink"
	"github.com/mrz1836/mavsign/internal/signing"
)

// maxConcurrentVerify caps how many files are verified at once.
const maxConcurrentVerify = 4

// verifyCmdFlags holds flags specific to the verify command.
type verifyCmdFlags struct {
	signingFlags
	tlog         bool
	live         bool
	failOnReject bool
}

// fileReport is the verification result for one file.
type fileReport struct {
	File      string         `json:"file"`
	Frames    int            `json:"frames"`
	Accepted  int            `json:"accepted"`
	Rejected  int            `json:"rejected"`
	Verdicts  map[string]int `json:"verdicts"`
	Streams   int            `json:"streams"`
	Skipped   int            `json:"skipped_bytes"`
	Truncated bool           `json:"truncated"`
}

// verifyReport is the result of a verify run.
type verifyReport struct {
	Files    []fileReport `json:"files"`
	Frames   int          `json:"frames"`
	Rejected int          `json:"rejected"`
}

// AddVerifyCommand adds the verify command to the root command.
func AddVerifyCommand(root *cobra.Command, global *GlobalFlags) {
	flags := &verifyCmdFlags{}

	cmd := &cobra.Command{
		Use:   "verify FILE...",
		Short: "Check the signatures in captured MAVLink traffic",
		Long: `Check every frame in each FILE against the signing key.

Each file is checked as its own connection: a frame is accepted when its
signature matches and its timestamp is newer than the last one accepted
from the same link, system and component. Rejected frames are counted and
verification carries on with the next frame.

By default timestamps are judged against the time the traffic was recorded,
taken from .tlog capture times when --tlog is given. With --live they are
judged against the configured clock instead, as a receiver would.

Examples:
  mavsign verify signed.bin
  mavsign verify --tlog --fail-on-reject flights/*.tlog
  mavsign verify -o json capture.bin`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.NewExitCode2Error(errors.ErrNoInput)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd, global, flags, args)
		},
	}

	addSigningFlags(cmd, &flags.signingFlags, true, false)
	cmd.Flags().BoolVar(&flags.tlog, "tlog", false, "files are .tlog captures with timestamps")
	cmd.Flags().BoolVar(&flags.live, "live", false, "judge timestamps against the configured clock")
	cmd.Flags().BoolVar(&flags.failOnReject, "fail-on-reject", false, "exit non-zero when any frame is rejected")

	root.AddCommand(cmd)
}

func runVerify(ctx context.Context, cmd *cobra.Command, global *GlobalFlags, flags *verifyCmdFlags, files []string) error {
	logger := GetLogger()

	sess, err := openSession(ctx, flags.overrides(cmd, global), logger)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	reports := make([]fileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentVerify)
	for i, path := range files {
		g.Go(func() error {
			r, err := verifyFile(gctx, sess, path, flags)
			if err != nil {
				return errors.Wrapf(err, "verifying %s", path)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report := verifyReport{Files: reports}
	for _, r := range reports {
		report.Frames += r.Frames
		report.Rejected += r.Rejected
	}

	logger.Info().
		Int("files", len(files)).
		Int("frames", report.Frames).
		Int("rejected", report.Rejected).
		Msg("verify complete")

	if err := printVerifyReport(cmd.OutOrStdout(), global, report); err != nil {
		return err
	}

	if flags.failOnReject && report.Rejected > 0 {
		return errors.Wrapf(errors.ErrVerificationFailed, "%d of %d frames rejected", report.Rejected, report.Frames)
	}
	return nil
}

// verifyFile checks every frame in path on a connection of its own.
func verifyFile(ctx context.Context, sess *session, path string, flags *verifyCmdFlags) (fileReport, error) {
	report := fileReport{File: path, Verdicts: make(map[string]int)}

	f, err := os.Open(path) //nolint:gosec // user-supplied input file
	if err != nil {
		return report, err
	}
	defer func() { _ = f.Close() }()

	var readerOpts []mavlink.ReaderOption
	if flags.tlog {
		readerOpts = append(readerOpts, mavlink.WithTlog())
	}
	reader := mavlink.NewReader(f, readerOpts...)

	connOpts := []link.Option{
		link.WithLogger(sess.logger.With().Str("file", path).Logger()),
		link.WithReader(reader),
	}
	var clk clock.Clock
	if !flags.live {
		replay := &clock.Replay{}
		clk = replay
		connOpts = append(connOpts, link.WithReplayClock(replay))
	}

	signer, rec := sess.newSigner(clk)
	defer rec.Close()
	conn := link.New(signer, connOpts...)

	for {
		_, _, err := conn.ReadFrame(ctx)
		if err == io.EOF { //nolint:errorlint // io.EOF is returned unwrapped
			break
		}
		if stderrors.Is(err, errors.ErrRejected) {
			continue
		}
		if stderrors.Is(err, errors.ErrShortFrame) {
			report.Truncated = true
			break
		}
		if err != nil {
			return report, err
		}
	}

	stats := conn.Stats()
	report.Frames = stats.Read
	report.Rejected = stats.Rejected()
	report.Accepted = stats.Read - report.Rejected
	for v, n := range stats.Verdicts {
		report.Verdicts[v.String()] = n
	}
	report.Streams = signer.Streams()
	report.Skipped = reader.Skipped()
	return report, nil
}

func printVerifyReport(w io.Writer, global *GlobalFlags, report verifyReport) error {
	if global.Output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	styles := newOutputStyles()
	for _, r := range report.Files {
		status := styles.success.Render("OK")
		if r.Rejected > 0 {
			status = styles.failure.Render("REJECTED")
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.header.Render(r.File), status)
		_, _ = fmt.Fprintf(w, "  %s %d  %s %d  %s %d  %s %d\n",
			styles.key.Render("frames"), r.Frames,
			styles.key.Render("accepted"), r.Accepted,
			styles.key.Render("rejected"), r.Rejected,
			styles.key.Render("streams"), r.Streams)

		for _, v := range signing.Verdicts() {
			n := r.Verdicts[v.String()]
			if n == 0 || v.Accepted() {
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s %d\n", styles.failure.Render(v.String()), n)
		}
		if r.Skipped > 0 {
			_, _ = fmt.Fprintln(w, styles.dim.Render(fmt.Sprintf("  %d bytes between frames skipped", r.Skipped)))
		}
		if r.Truncated {
			_, _ = fmt.Fprintln(w, styles.warning.Render("  file ends inside a frame"))
		}
	}

	if len(report.Files) > 1 {
		names := make([]string, 0, len(report.Files))
		for _, r := range report.Files {
			if r.Rejected > 0 {
				names = append(names, r.File)
			}
		}
		sort.Strings(names)
		_, _ = fmt.Fprintf(w, "\n%d frames in %d files, %d rejected\n", report.Frames, len(report.Files), report.Rejected)
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "  %s\n", styles.failure.Render(name))
		}
	}
	return nil
}
