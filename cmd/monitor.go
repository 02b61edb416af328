package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"uart-terminal/pkg/app"
	"uart-terminal/pkg/config"
	"uart-terminal/pkg/display"
	"uart-terminal/pkg/rx"
	"uart-terminal/pkg/session"
)

var (
	monitorSettings = config.Default()
	monitorFilter   string
	monitorTXColor  string
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Stream a serial port to the terminal without the full screen UI",
	Long: `Stream a serial port to standard output and send what you type.

Received text is rendered with the same newline, carriage return and
escape sequence rules as the full screen terminal. When standard input
is a terminal it is switched to raw mode. Press Ctrl+] to exit.`,
	Args:    cobra.ExactArgs(1),
	Aliases: []string{"m"},
	RunE:    runMonitor,
}

func init() {
	config.BindFlags(monitorCmd.Flags(), &monitorSettings)
	monitorCmd.Flags().StringVar(&monitorFilter, "filter", display.FilterAll.String(), "traffic to show (all, tx, rx)")
	monitorCmd.Flags().StringVar(&monitorTXColor, "tx-color", rx.ColorYellow.String(), "color of echoed input")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	filter, err := display.ParseFilter(monitorFilter)
	if err != nil {
		return err
	}

	color, err := parseColor(monitorTXColor)
	if err != nil {
		return err
	}

	settings := monitorSettings
	settings.Port = args[0]

	out := cmd.OutOrStdout()
	sw := display.NewStreamWriter(out, filter, color)

	sess, err := session.New(newProvider(logger), settings,
		session.WithLogger(logger),
		session.WithSink(app.StreamSink(sw, logger)))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return app.NewRunner(sess, out, logger).RunHeadless(cmd.Context(), cmd.InOrStdin())
}

// parseColor parses a color name as printed by rx.Color
func parseColor(name string) (rx.Color, error) {
	name = strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	if name == rx.ColorDefault.String() || name == "none" {
		return rx.ColorDefault, nil
	}

	for c := rx.ColorBlack; c <= rx.ColorBrightWhite; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return rx.ColorDefault, fmt.Errorf("unknown color %q", name)
}
