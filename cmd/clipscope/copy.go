package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipscope/internal/clip"
	"go.klb.dev/clipscope/internal/clipdata"
	"go.klb.dev/clipscope/internal/copyback"
	"go.klb.dev/clipscope/internal/i18n"
	"go.klb.dev/clipscope/internal/notify"
)

// maxStdinBytes bounds what copy will read from stdin.
const maxStdinBytes = 64 << 20

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy [file]",
		Short: "Put stdin (or a file) on the clipboard as one MIME type",
		Long: `Writes data to the clipboard under the type given by --mime, using the
same write path as the inspector's "Copy all": one structured write, then
per-type writes, then plain text.

  echo '<b>hi</b>' | clipscope copy --mime text/html
  clipscope copy --mime image/png shot.png`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runCopy(cmd, v, args) },
	}

	f := cmd.Flags()
	f.String("mime", clipdata.MIMEText, "MIME type of the data")
	f.String("backend", string(clip.KindAuto), "clipboard backend: auto|system|memory")
	f.String("lang", "", "message language")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runCopy(cmd *cobra.Command, v *viper.Viper, args []string) error {
	setupToolLogging(v)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(io.LimitReader(r, maxStdinBytes+1))
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if len(raw) > maxStdinBytes {
		return fmt.Errorf("input larger than %d bytes", maxStdinBytes)
	}

	mime := strings.TrimSpace(v.GetString("mime"))
	if mime == "" {
		return errors.New("--mime must not be empty")
	}

	kind, err := clip.ParseKind(v.GetString("backend"))
	if err != nil {
		return err
	}
	caps, err := clip.Open(kind)
	if err != nil {
		return err
	}

	c := copyback.New(caps.Writer, notify.Log{}, i18n.New(v.GetString("lang")))
	res, err := c.CopyBack(ctx, clipdata.NewSnapshot(clipdata.NewEntry(mime, raw)), nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", strings.Join(res.Written, ", "))
	return nil
}
