package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/mavsign/internal/config"
)

// keygenFlags holds flags specific to the keygen command.
type keygenFlags struct {
	keyFile string
	force   bool
}

// keygenResult is printed by keygen in both output formats.
type keygenResult struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// AddKeygenCommand adds the keygen command to the root command.
func AddKeygenCommand(root *cobra.Command, global *GlobalFlags) {
	flags := &keygenFlags{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random signing key",
		Long: `Generate a random 32-byte signing key and store it hex-encoded with
mode 0600.

Every endpoint on a link must share the same key. Copy the file to each
peer, or compare fingerprints to check that two peers agree.

Examples:
  mavsign keygen
  mavsign keygen --key-file ./gcs.key
  mavsign keygen --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd.Context(), cmd, cmd.OutOrStdout(), global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.keyFile, "key-file", "", "where to write the key (default ~/.mavsign/keys/signing.key)")
	cmd.Flags().BoolVar(&flags.force, "force", false, "replace an existing key")

	root.AddCommand(cmd)
}

func runKeygen(ctx context.Context, cmd *cobra.Command, w io.Writer, global *GlobalFlags, flags *keygenFlags) error {
	logger := GetLogger()

	var o config.Overrides
	if cmd.Flags().Changed("key-file") {
		o.KeyFile = &flags.keyFile
	}
	cfg, err := config.LoadWithOverrides(logger.WithContext(ctx), o)
	if err != nil {
		return err
	}

	km, err := newKeyManager(cfg.Signing)
	if err != nil {
		return err
	}
	if err := km.Generate(ctx, flags.force); err != nil {
		return err
	}
	key, err := km.Key()
	if err != nil {
		return err
	}

	res := keygenResult{Path: km.Path(), Fingerprint: key.Fingerprint()}
	logger.Info().Str("path", res.Path).Str("fingerprint", res.Fingerprint).Msg("signing key generated")

	if global.Output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	styles := newOutputStyles()
	_, _ = fmt.Fprintf(w, "%s %s\n", styles.success.Render("Key written to"), res.Path)
	_, _ = fmt.Fprintf(w, "%s %s\n", styles.dim.Render("Fingerprint:"), res.Fingerprint)
	return nil
}
