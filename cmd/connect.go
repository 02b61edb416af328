package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"uart-terminal/pkg/app"
	"uart-terminal/pkg/config"
	"uart-terminal/pkg/history"
	"uart-terminal/pkg/serial"
	"uart-terminal/pkg/session"
)

var (
	connectSettings      = config.Default()
	connectHistoryFormat string
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <port>",
	Short: "Open a serial port in the full screen terminal",
	Long: `Open a serial port in the full screen terminal.

Examples:
  # Connect to /dev/ttyUSB0 at 115200 8N1
  uart-terminal connect /dev/ttyUSB0

  # 9600 baud, CR+LF on Enter, show what you type
  uart-terminal connect COM3 -b 9600 --enter crlf --echo

Press F1 inside the terminal for the list of shortcuts.`,
	Args:    cobra.ExactArgs(1),
	Aliases: []string{"open", "c"},
	RunE:    runConnect,
}

func init() {
	config.BindFlags(connectCmd.Flags(), &connectSettings)
	connectCmd.Flags().StringVar(&connectHistoryFormat, "history-format", history.FormatTimestamped.String(),
		"format of history files saved with F6 (plain, timestamped, json, hex)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("connect needs a terminal; use monitor to stream to a pipe")
	}

	format, err := history.ParseFileFormat(connectHistoryFormat)
	if err != nil {
		return err
	}

	settings := connectSettings
	settings.Port = args[0]

	// Logging to the console would draw over the UI.
	uiLogger := logger
	if logFile == "" {
		uiLogger = zerolog.Nop()
	}

	notifier := app.NewNotifier()
	sess, err := session.New(newProvider(uiLogger), settings,
		session.WithLogger(uiLogger),
		session.WithNotify(notifier.Notify))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if verbose {
		printSettings(cmd.OutOrStdout(), settings)
	}

	return app.NewRunner(sess, cmd.OutOrStdout(), uiLogger).
		RunInteractive(cmd.Context(), app.WithNotifier(notifier), app.WithHistoryFormat(format))
}

func printSettings(out io.Writer, s config.Settings) {
	fmt.Fprintf(out, "Connecting to port %s...\n", s.Port)
	fmt.Fprintf(out, "  Settings: %s\n", s.Serial)
	fmt.Fprintf(out, "  Flow Control: %s\n", s.Serial.FlowControl)
	fmt.Fprintf(out, "  Enter: %s  Backspace: %s  Delete: %s\n", s.TX.Enter, s.TX.Backspace, s.TX.Delete)
	fmt.Fprintf(out, "  Newline: %s  Carriage Return: %s  ANSI: %t\n", s.RX.NewLine, s.RX.CarriageReturn, s.RX.AnsiEscapeCodes)
}

// printOpenHints suggests fixes for errors opening a port
func printOpenHints(out io.Writer, err error) {
	switch {
	case errors.Is(err, serial.ErrPermissionDenied):
		fmt.Fprintf(out, "\nPossible solutions:\n")
		fmt.Fprintf(out, "  - Check if you have permission to access the port\n")
		fmt.Fprintf(out, "  - On Linux: Add your user to the 'dialout' group: sudo usermod -a -G dialout $USER\n")
	case errors.Is(err, serial.ErrPortBusy):
		fmt.Fprintf(out, "\nPossible solutions:\n")
		fmt.Fprintf(out, "  - The port may be in use by another application\n")
		fmt.Fprintf(out, "  - Close other terminal programs or serial monitors, or retry with --retries\n")
	case errors.Is(err, serial.ErrPortNotFound):
		fmt.Fprintf(out, "\nPossible solutions:\n")
		fmt.Fprintf(out, "  - The specified port does not exist\n")
		fmt.Fprintf(out, "  - Use 'uart-terminal list' to see available ports\n")
	}
}
