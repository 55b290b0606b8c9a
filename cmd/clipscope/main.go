// clipscope: inspect every format on the system clipboard.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/clipscope/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipscope",
		Short: "Inspect every format on the clipboard",
		Long: `clipscope reads the system clipboard in every representation it can get
(plain text, HTML, images, files, custom types), shows them side by side, and
lets you edit and write them back.

Run "clipscope serve" and open the printed URL for the web inspector. On
hosts where the clipboard cannot be read directly, the page captures a
Ctrl+V / Cmd+V paste instead. Use "clipscope inspect" from a terminal.

Config file search order (first found wins):
  /etc/clipscope/clipscope.toml
  $HOME/.config/clipscope/clipscope.toml
  path supplied via --config

All flags can be set via CLIPSCOPE_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newInspectCmd(),
		newCopyCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipscope %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
