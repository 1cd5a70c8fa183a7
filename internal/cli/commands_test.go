package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mavsign/internal/config"
	"github.com/mrz1836/mavsign/internal/constants"
	"github.com/mrz1836/mavsign/internal/crypto"
	"github.com/mrz1836/mavsign/internal/errors"
	"github.com/mrz1836/mavsign/internal/link"
	"github.com/mrz1836/mavsign/internal/mavlink"
	"github.com/mrz1836/mavsign/internal/metrics"
	"github.com/mrz1836/mavsign/internal/signing"
	"github.com/mrz1836/mavsign/internal/testutil"
)

func heartbeatFrame(t *testing.T, seq uint8) *mavlink.Frame {
	t.Helper()
	f, err := mavlink.NewFrame(mavlink.Header{Sequence: seq, SystemID: 1, ComponentID: 1},
		[]byte{0, 0, 0, 0, 2, 3, 0x51, 4, 3}, 50)
	require.NoError(t, err)
	return f
}

// writeCapture writes n unsigned heartbeats and one version 1 frame to a
// raw capture file, with a little line noise in front.
func writeCapture(t *testing.T, n int) string {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x42})
	for i := range n {
		buf.Write(heartbeatFrame(t, uint8(i)).Bytes()) //nolint:gosec // small test counts
	}
	v1, err := mavlink.NewFrameV1(mavlink.Header{SystemID: 2, ComponentID: 1}, []byte{1, 2, 3}, 0)
	require.NoError(t, err)
	buf.Write(v1.Bytes())

	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func decodeVerify(t *testing.T, out string) verifyReport {
	t.Helper()
	var report verifyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	return report
}

func TestKeygen(t *testing.T) {
	home := isolateHome(t)

	out, _, err := execute(t, "-o", "json", "keygen")
	require.NoError(t, err)

	var res keygenResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	keyPath := filepath.Join(home, constants.KeysDir, constants.KeyFileName)
	assert.Equal(t, keyPath, res.Path)
	assert.Len(t, res.Fingerprint, 8)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(keyPath) //nolint:gosec // test temp dir
	require.NoError(t, err)
	key, err := crypto.ParseHex(string(data))
	require.NoError(t, err)
	assert.Equal(t, key.Fingerprint(), res.Fingerprint)
	assert.NotContains(t, out, key.Hex())

	_, _, err = execute(t, "keygen")
	require.ErrorIs(t, err, errors.ErrKeyExists)

	out, _, err = execute(t, "keygen", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Key written to")
	assert.NotContains(t, out, res.Fingerprint)
}

func TestKeygen_KeyFileFlag(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "nested", "gcs.key")

	_, _, err := execute(t, "keygen", "--key-file", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSignThenVerify(t *testing.T) {
	isolateHome(t)
	_, _, err := execute(t, "keygen")
	require.NoError(t, err)

	in := writeCapture(t, 3)
	signed := filepath.Join(t.TempDir(), "signed.bin")

	_, stderr, err := execute(t, "-o", "json", "sign", "--link-id", "7", in, signed)
	require.NoError(t, err)

	var res signResult
	require.NoError(t, json.Unmarshal([]byte(stderr), &res))
	assert.Equal(t, 4, res.Frames)
	assert.Equal(t, 3, res.Signed)
	assert.Equal(t, 1, res.Unsigned)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, uint8(7), res.LinkID)

	data, err := os.ReadFile(signed) //nolint:gosec // test temp dir
	require.NoError(t, err)
	reader := mavlink.NewReader(bytes.NewReader(data))
	for range 3 {
		f, err := reader.ReadFrame()
		require.NoError(t, err)
		assert.True(t, f.Signed())
		assert.Equal(t, uint8(7), f.SignatureLinkID())
	}

	// The version 1 frame is unsigned, so strict verification rejects it.
	out, _, err := execute(t, "-o", "json", "verify", signed)
	require.NoError(t, err)
	report := decodeVerify(t, out)
	require.Len(t, report.Files, 1)
	assert.Equal(t, 4, report.Frames)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 3, report.Files[0].Verdicts["accepted"])
	assert.Equal(t, 1, report.Files[0].Verdicts["rejected_unsigned"])
	assert.Equal(t, 1, report.Files[0].Streams)

	out, _, err = execute(t, "-o", "json", "verify", "--allow-unsigned", signed)
	require.NoError(t, err)
	report = decodeVerify(t, out)
	assert.Equal(t, 0, report.Rejected)
	assert.Equal(t, 1, report.Files[0].Verdicts["accepted_unsigned"])

	_, _, err = execute(t, "verify", "--fail-on-reject", signed)
	require.ErrorIs(t, err, errors.ErrVerificationFailed)
	assert.Equal(t, ExitError, ExitCodeForError(err))

	_, _, err = execute(t, "verify", "--live", "--allow-unsigned", "--fail-on-reject", signed)
	require.NoError(t, err)
}

func TestVerify_ReplayedTraffic(t *testing.T) {
	isolateHome(t)
	_, _, err := execute(t, "keygen")
	require.NoError(t, err)

	signed := filepath.Join(t.TempDir(), "signed.bin")
	_, _, err = execute(t, "sign", writeCapture(t, 3), signed)
	require.NoError(t, err)

	data, err := os.ReadFile(signed) //nolint:gosec // test temp dir
	require.NoError(t, err)
	replayed := filepath.Join(t.TempDir(), "replayed.bin")
	require.NoError(t, os.WriteFile(replayed, append(append([]byte{}, data...), data...), 0o600))

	out, _, err := execute(t, "-o", "json", "verify", "--allow-unsigned", signed, replayed)
	require.NoError(t, err)
	report := decodeVerify(t, out)
	require.Len(t, report.Files, 2)
	assert.Equal(t, signed, report.Files[0].File)
	assert.Equal(t, 0, report.Files[0].Rejected)
	assert.Equal(t, replayed, report.Files[1].File)
	assert.Equal(t, 3, report.Files[1].Verdicts["rejected_replay"])
	assert.Equal(t, 3, report.Rejected)

	out, _, err = execute(t, "verify", "--allow-unsigned", signed, replayed)
	require.NoError(t, err)
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "rejected_replay 3")
}

func TestVerify_WrongKey(t *testing.T) {
	isolateHome(t)
	_, _, err := execute(t, "keygen")
	require.NoError(t, err)

	signed := filepath.Join(t.TempDir(), "signed.bin")
	_, _, err = execute(t, "sign", writeCapture(t, 2), signed)
	require.NoError(t, err)

	_, _, err = execute(t, "keygen", "--force")
	require.NoError(t, err)

	out, _, err := execute(t, "-o", "json", "verify", "--allow-unsigned", signed)
	require.NoError(t, err)
	report := decodeVerify(t, out)
	assert.Equal(t, 2, report.Files[0].Verdicts["rejected_signature"])
	assert.Equal(t, 0, report.Files[0].Streams)
}

func TestVerify_TlogCaptureTime(t *testing.T) {
	isolateHome(t)
	const passEnv = "MAVSIGN_TEST_PASSPHRASE"
	t.Setenv("MAVSIGN_SIGNING_PASSPHRASE_ENV", passEnv)
	t.Setenv(passEnv, "correct horse battery staple")

	// Record a signed log in 2019.
	recorded := time.Date(2019, 3, 1, 8, 0, 0, 0, time.UTC)
	cfg := signing.NewConfig(crypto.FromPassphrase("correct horse battery staple"), 0, true, false)
	signer := signing.FromConfig(cfg, signing.WithClock(testutil.NewManualClock(recorded)))
	var log bytes.Buffer
	conn := link.New(signer, link.WithWriter(mavlink.NewWriter(&log, mavlink.WithTlogPrefix(func() time.Time { return recorded }))))
	ctx := context.Background()
	for i := range 3 {
		require.NoError(t, conn.WriteFrame(ctx, heartbeatFrame(t, uint8(i)))) //nolint:gosec // small test counts
	}
	path := filepath.Join(t.TempDir(), "flight.tlog")
	require.NoError(t, os.WriteFile(path, log.Bytes(), 0o600))

	out, _, err := execute(t, "-o", "json", "verify", "--tlog", "--fail-on-reject", path)
	require.NoError(t, err)
	assert.Equal(t, 3, decodeVerify(t, out).Files[0].Verdicts["accepted"])

	out, _, err = execute(t, "-o", "json", "verify", "--tlog", "--live", path)
	require.NoError(t, err)
	report := decodeVerify(t, out)
	assert.Equal(t, 3, report.Files[0].Verdicts["rejected_stale_stream"])
}

func TestSign_TruncatedInput(t *testing.T) {
	isolateHome(t)
	_, _, err := execute(t, "keygen")
	require.NoError(t, err)

	full := heartbeatFrame(t, 0).Bytes()
	in := filepath.Join(t.TempDir(), "cut.bin")
	require.NoError(t, os.WriteFile(in, append(append([]byte{}, full...), full[:5]...), 0o600))

	_, stderr, err := execute(t, "-o", "json", "sign", in, filepath.Join(t.TempDir(), "out.bin"))
	require.NoError(t, err)
	var res signResult
	require.NoError(t, json.Unmarshal([]byte(stderr), &res))
	assert.Equal(t, 1, res.Signed)
	assert.True(t, res.Truncated)
}

func TestSign_FalseStartMarkerInNoise(t *testing.T) {
	isolateHome(t)
	_, _, err := execute(t, "keygen")
	require.NoError(t, err)

	data := []byte{0x00, mavlink.MagicV1, 0x40}
	data = append(data, heartbeatFrame(t, 0).Bytes()...)
	data = append(data, heartbeatFrame(t, 1).Bytes()...)
	in := filepath.Join(t.TempDir(), "noisy.bin")
	require.NoError(t, os.WriteFile(in, data, 0o600))

	_, stderr, err := execute(t, "-o", "json", "sign", in, filepath.Join(t.TempDir(), "out.bin"))
	require.NoError(t, err)
	var res signResult
	require.NoError(t, json.Unmarshal([]byte(stderr), &res))
	assert.Equal(t, 2, res.Frames)
	assert.Equal(t, 2, res.Signed)
	assert.Equal(t, 3, res.Skipped)
	assert.False(t, res.Truncated)
}

func TestSign_Stdio(t *testing.T) {
	isolateHome(t)
	_, _, err := execute(t, "keygen")
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
	cmd.SetIn(bytes.NewReader(heartbeatFrame(t, 0).Bytes()))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"sign", "-", "-"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	f, err := mavlink.Parse(stdout.Bytes())
	require.NoError(t, err)
	assert.True(t, f.Signed())
	assert.Contains(t, stderr.String(), "Signed 1 of 1 frames")
}

func TestCommands_MissingKey(t *testing.T) {
	isolateHome(t)

	_, _, err := execute(t, "sign", writeCapture(t, 1), filepath.Join(t.TempDir(), "out.bin"))
	require.ErrorIs(t, err, errors.ErrKeyNotLoaded)

	t.Setenv("MAVSIGN_SIGNING_PASSPHRASE_ENV", "MAVSIGN_TEST_UNSET_PASSPHRASE")
	_, _, err = execute(t, "verify", writeCapture(t, 1))
	require.ErrorIs(t, err, errors.ErrKeyNotLoaded)
}

func TestCommands_InvalidInput(t *testing.T) {
	isolateHome(t)

	_, _, err := execute(t, "verify")
	require.ErrorIs(t, err, errors.ErrNoInput)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))

	_, _, err = execute(t, "sign", "only-one-arg")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))

	_, _, err = execute(t, "sign", "--link-id", "256", "in", "out")
	require.ErrorIs(t, err, errors.ErrConfigInvalidSigning)

	_, _, err = execute(t, "keygen")
	require.NoError(t, err)
	_, _, err = execute(t, "verify", filepath.Join(t.TempDir(), "missing.bin"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSigningFlags_Overrides(t *testing.T) {
	t.Parallel()

	f := &signingFlags{}
	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
	addSigningFlags(cmd, f, true, true)
	require.NoError(t, cmd.ParseFlags([]string{"--link-id", "5", "--allow-unsigned"}))

	o := f.overrides(cmd, &GlobalFlags{MetricsAddr: "127.0.0.1:0"})
	require.NotNil(t, o.LinkID)
	assert.Equal(t, 5, *o.LinkID)
	require.NotNil(t, o.AllowUnsigned)
	assert.True(t, *o.AllowUnsigned)
	assert.Nil(t, o.SignOutgoing)
	assert.Nil(t, o.KeyFile)
	require.NotNil(t, o.MetricsListen)
	assert.Equal(t, "127.0.0.1:0", *o.MetricsListen)
}

func TestOpenSession_MetricsEndpoint(t *testing.T) {
	isolateHome(t)
	listen := "127.0.0.1:0"
	t.Setenv("MAVSIGN_SIGNING_PASSPHRASE_ENV", "MAVSIGN_TEST_PASSPHRASE")
	t.Setenv("MAVSIGN_TEST_PASSPHRASE", "metrics")

	sess, err := openSession(context.Background(), config.Overrides{MetricsListen: &listen}, InitLoggerWithWriter(false, true, io.Discard))
	require.NoError(t, err)
	require.NoError(t, sess.Close())
}

func TestServeMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New()
	require.NoError(t, m.Register(reg))
	m.Connection().Signed()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveMetrics(ctx, ln, reg) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+ln.Addr().String()+"/metrics", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Contains(t, string(body), "mavsign_signed_total 1")
	assert.Contains(t, string(body), `mavsign_verifications_total{result="rejected_replay"} 0`)

	cancel()
	require.NoError(t, <-done)
}
