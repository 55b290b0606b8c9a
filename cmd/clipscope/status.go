package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/grpcservice"
	"go.klb.dev/clipscope/internal/hub"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running server",
		Long: `Prints the running server's acquisition state, its clipboard
capabilities and the number of open inspector pages. --watch keeps the
connection open and prints every state change and notification.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}

	f := cmd.Flags()
	f.Bool("json", false, "output as JSON")
	f.Bool("watch", false, "stream state changes until interrupted")
	addClientFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	setupToolLogging(v)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, transport, err := connect(cmd, v)
	if err != nil {
		return err
	}
	defer conn.Close()
	client := grpcservice.NewClient(conn)

	if v.GetBool("watch") {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		err := client.Watch(ctx, nil, func(ev grpcservice.WatchEvent) error {
			return printEvent(os.Stdout, ev, v.GetBool("json"))
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	resp, err := client.State(ctx)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if v.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printStatus(os.Stdout, transport, resp)
	return nil
}

func printStatus(w io.Writer, transport string, resp *grpcservice.StateResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Transport:\t%s\n", transport)
	fmt.Fprintf(tw, "Status:\t%s\n", statusColor(resp.State.Status).Sprint(resp.State.Status))
	fmt.Fprintf(tw, "Generation:\t%d\n", resp.State.Generation)
	if resp.State.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", resp.State.Error)
	}
	if snap := resp.State.Snapshot; snap != nil {
		fmt.Fprintf(tw, "Snapshot:\t%s (%s, %d entries)\n", snap.ID(), snap.Source(), snap.Len())
		fmt.Fprintf(tw, "Types:\t%s\n", strings.Join(snap.Types(), ", "))
	}
	caps := "none"
	if len(resp.Capabilities) > 0 {
		caps = strings.Join(resp.Capabilities, ", ")
	}
	fmt.Fprintf(tw, "Capabilities:\t%s\n", caps)
	fmt.Fprintf(tw, "Viewers:\t%d\n", resp.Viewers)
	_ = tw.Flush()
}

func printEvent(w io.Writer, ev grpcservice.WatchEvent, asJSON bool) error {
	if asJSON {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	switch hub.Kind(ev.Kind) {
	case hub.KindState:
		var st acquire.State
		if err := json.Unmarshal(ev.Data, &st); err != nil {
			return err
		}
		line := fmt.Sprintf("state #%d %s", st.Generation, statusColor(st.Status).Sprint(st.Status))
		switch {
		case st.Error != "":
			line += ": " + st.Error
		case st.Snapshot != nil:
			line += ": " + strings.Join(st.Snapshot.Types(), ", ")
		}
		_, err := fmt.Fprintln(w, line)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s %s\n", ev.Kind, ev.Data)
		return err
	}
}

func statusColor(s acquire.Status) *color.Color {
	switch s {
	case acquire.StatusSucceeded:
		return color.New(color.FgGreen)
	case acquire.StatusFailed:
		return color.New(color.FgRed)
	case acquire.StatusInProgress:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Reset)
	}
}
