package cli

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/mavsign/internal/ctxutil"
	"github.com/mrz1836/mavsign/internal/errors"
	"github.com/mrz1836/mavsign/internal/link"
	"github.com/mrz1836/mavsign/internal/mavlink"
)

// stdio names standard input or output in place of a file.
const stdio = "-"

// signCmdFlags holds flags specific to the sign command.
type signCmdFlags struct {
	signingFlags
	tlog bool
}

// signResult summarizes a sign run.
type signResult struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Frames    int    `json:"frames"`
	Signed    int    `json:"signed"`
	Unsigned  int    `json:"unsigned"`
	Skipped   int    `json:"skipped_bytes"`
	Truncated bool   `json:"truncated"`
	LinkID    uint8  `json:"link_id"`
}

// AddSignCommand adds the sign command to the root command.
func AddSignCommand(root *cobra.Command, global *GlobalFlags) {
	flags := &signCmdFlags{}

	cmd := &cobra.Command{
		Use:   "sign INPUT OUTPUT",
		Short: "Sign every MAVLink 2 frame in a stream",
		Long: `Read MAVLink frames from INPUT, sign them and write them to OUTPUT.

Version 2 frames are flagged as signed and carry the configured link id and
a fresh timestamp. Version 1 frames cannot be signed and are copied as they
are. Bytes between frames are dropped. Use "-" for standard input or output.

Examples:
  mavsign sign capture.bin signed.bin
  mavsign sign --tlog --link-id 3 flight.tlog flight-signed.tlog
  socat - UDP:127.0.0.1:14550 | mavsign sign - -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd.Context(), cmd, global, flags, args[0], args[1])
		},
	}

	addSigningFlags(cmd, &flags.signingFlags, false, true)
	cmd.Flags().BoolVar(&flags.tlog, "tlog", false, "input and output are .tlog files with capture timestamps")

	root.AddCommand(cmd)
}

func runSign(ctx context.Context, cmd *cobra.Command, global *GlobalFlags, flags *signCmdFlags, inPath, outPath string) error {
	logger := GetLogger()

	sess, err := openSession(ctx, flags.overrides(cmd, global), logger)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	in, closeIn, err := openInput(cmd, inPath)
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(cmd, outPath)
	if err != nil {
		return err
	}

	res, err := signStream(ctx, sess, in, out, flags.tlog)
	if cerr := closeOut(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "closing output")
	}
	if err != nil {
		return err
	}
	res.Input, res.Output = inPath, outPath

	logger.Info().
		Int("frames", res.Frames).
		Int("signed", res.Signed).
		Int("skipped_bytes", res.Skipped).
		Msg("sign complete")

	return printSignResult(cmd.ErrOrStderr(), global, res)
}

// signStream copies frames from in to out through a signing connection.
func signStream(ctx context.Context, sess *session, in io.Reader, out io.Writer, tlog bool) (signResult, error) {
	signer, rec := sess.newSigner(nil)
	defer rec.Close()

	var readerOpts []mavlink.ReaderOption
	var writerOpts []mavlink.WriterOption
	if tlog {
		readerOpts = append(readerOpts, mavlink.WithTlog())
		writerOpts = append(writerOpts, mavlink.WithTlogPrefix(sess.clock.Now))
	}

	bw := bufio.NewWriter(out)
	reader := mavlink.NewReader(in, readerOpts...)
	conn := link.New(signer,
		link.WithLogger(sess.logger),
		link.WithWriter(mavlink.NewWriter(bw, writerOpts...)),
	)

	res := signResult{LinkID: signer.Config().LinkID()}
	for {
		if err := ctxutil.Canceled(ctx); err != nil {
			return res, err
		}

		f, err := reader.ReadFrame()
		if err == io.EOF { //nolint:errorlint // io.EOF is returned unwrapped
			break
		}
		if stderrors.Is(err, errors.ErrShortFrame) {
			res.Truncated = true
			sess.logger.Warn().Err(err).Msg("input ends inside a frame")
			break
		}
		if err != nil {
			return res, err
		}

		if err := conn.WriteFrame(ctx, f); err != nil {
			return res, err
		}
	}

	if err := bw.Flush(); err != nil {
		return res, errors.Wrap(err, "flushing output")
	}

	stats := conn.Stats()
	res.Frames = stats.Written
	res.Signed = stats.Signed
	res.Unsigned = stats.Written - stats.Signed
	res.Skipped = reader.Skipped()
	return res, nil
}

func printSignResult(w io.Writer, global *GlobalFlags, res signResult) error {
	if global.Output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	styles := newOutputStyles()
	_, _ = fmt.Fprintf(w, "%s %d of %d frames on link %d\n",
		styles.success.Render("Signed"), res.Signed, res.Frames, res.LinkID)
	if res.Unsigned > 0 {
		_, _ = fmt.Fprintln(w, styles.warning.Render(fmt.Sprintf("%d version 1 frames copied unsigned", res.Unsigned)))
	}
	if res.Skipped > 0 {
		_, _ = fmt.Fprintln(w, styles.dim.Render(fmt.Sprintf("%d bytes between frames dropped", res.Skipped)))
	}
	if res.Truncated {
		_, _ = fmt.Fprintln(w, styles.warning.Render("input ended inside a frame"))
	}
	return nil
}

// openInput opens path for reading, or standard input for "-".
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == stdio {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path) //nolint:gosec // user-supplied input file
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

// openOutput creates path for writing, or returns standard output for "-".
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == stdio {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // user-supplied output file
	if err != nil {
		return nil, nil, errors.Wrapf(err, "creating %s", path)
	}
	return f, f.Close, nil
}
