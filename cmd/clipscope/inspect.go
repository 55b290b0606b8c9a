package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/clip"
	"go.klb.dev/clipscope/internal/clipdata"
	"go.klb.dev/clipscope/internal/grpcservice"
	"go.klb.dev/clipscope/internal/i18n"
	"go.klb.dev/clipscope/internal/logging"
)

func newInspectCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read the clipboard and list every format on it",
		Long: `Reads the clipboard and prints one row per format. HTML is also shown
as Markdown.

By default the running server does the read (via the local socket, or
--server), so the result matches what the web page shows. --local reads the
clipboard in-process instead; there is no page to paste into, so that mode
only uses the structured and text reads.

  clipscope inspect --mime image/png > shot.png`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runInspect(cmd, v) },
	}

	f := cmd.Flags()
	f.Bool("local", false, "read the clipboard in-process instead of asking a server")
	f.String("backend", string(clip.KindAuto), "clipboard backend for --local: auto|system|memory")
	f.String("lang", "", "message language")
	f.Bool("json", false, "output the snapshot as JSON")
	f.String("mime", "", "print only the payload of this type, decoded")
	addClientFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runInspect(cmd *cobra.Command, v *viper.Viper) error {
	setupToolLogging(v)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := acquireFor(ctx, cmd, v)
	if err != nil {
		return err
	}
	if st.Status == acquire.StatusFailed {
		return errors.New(st.Error)
	}
	if st.Snapshot == nil {
		return errors.New("no snapshot returned")
	}
	snap := *st.Snapshot

	switch {
	case v.GetString("mime") != "":
		return printPayload(os.Stdout, snap, v.GetString("mime"))
	case v.GetBool("json"):
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	default:
		printSnapshot(os.Stdout, snap)
		return nil
	}
}

func acquireFor(ctx context.Context, cmd *cobra.Command, v *viper.Viper) (acquire.State, error) {
	if v.GetBool("local") {
		kind, err := clip.ParseKind(v.GetString("backend"))
		if err != nil {
			return acquire.State{}, err
		}
		caps, err := clip.Open(kind)
		if err != nil {
			return acquire.State{}, err
		}
		e := acquire.New(acquire.Config{Capabilities: caps, Translator: i18n.New(v.GetString("lang"))})
		defer e.Close()
		_, err = e.Acquire(ctx)
		var failed *acquire.FailedError
		if err != nil && !errors.As(err, &failed) {
			return acquire.State{}, err
		}
		return e.State(), nil
	}

	conn, _, err := connect(cmd, v)
	if err != nil {
		return acquire.State{}, err
	}
	defer conn.Close()
	st, err := grpcservice.NewClient(conn).Acquire(ctx)
	if err != nil {
		return acquire.State{}, fmt.Errorf("acquire: %w", err)
	}
	return st, nil
}

func printPayload(w io.Writer, snap clipdata.Snapshot, mime string) error {
	e, ok := snap.Lookup(mime)
	if !ok {
		return fmt.Errorf("%s not on the clipboard (have %s)", mime, strings.Join(snap.Types(), ", "))
	}
	raw, err := clipdata.DecodePayload(e)
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

func printSnapshot(w io.Writer, snap clipdata.Snapshot) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	_, _ = bold.Fprintf(w, "Snapshot %s", snap.ID())
	_, _ = dim.Fprintf(w, " (%s", snap.Source())
	if !snap.CapturedAt().IsZero() {
		_, _ = dim.Fprintf(w, ", %s", snap.CapturedAt().Local().Format("15:04:05"))
	}
	_, _ = dim.Fprintln(w, ")")
	if snap.HasRichText() {
		_, _ = yellow.Fprintln(w, "rich text")
	}
	if snap.HasHiddenData() {
		_, _ = yellow.Fprintln(w, "contains hidden data")
	}
	if snap.Empty() {
		fmt.Fprintln(w, "The clipboard is empty.")
		return
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "#\tTYPE\tKIND\tSIZE\tPREVIEW\n")
	for i, e := range snap.Entries() {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, cyan.Sprint(e.MIME), entryKind(e), entrySize(e), entryPreview(e))
	}
	_ = tw.Flush()

	if html, ok := snap.PrimaryHTML(); ok {
		if md := htmlToMarkdown(html); md != "" {
			fmt.Fprintln(w)
			_, _ = bold.Fprintln(w, "text/html as Markdown:")
			fmt.Fprintln(w, md)
		}
	}
}

func entryKind(e clipdata.Entry) string {
	switch {
	case e.IsFile && e.IsImage:
		return "image file"
	case e.IsFile:
		return "file"
	case e.IsImage:
		return "image"
	case clipdata.IsTextual(e.MIME):
		return "text"
	default:
		return "binary"
	}
}

func entrySize(e clipdata.Entry) string {
	n := int64(len(e.Payload))
	if e.Size != nil {
		n = *e.Size
	}
	return humanBytes(n)
}

func entryPreview(e clipdata.Entry) string {
	if !clipdata.IsTextual(e.MIME) {
		return "-"
	}
	s := strings.Join(strings.Fields(e.Payload), " ")
	return logging.Preview(s)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
