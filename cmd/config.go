package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"uart-terminal/pkg/config"
	"uart-terminal/pkg/serial"
	"uart-terminal/pkg/tx"
)

var (
	showSettings = config.Default()
	showJSON     bool
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect terminal settings",
	Long: `Inspect the settings a session would run with.

Settings are not saved between runs; every command takes them as flags.`,
}

// showCmd prints the effective settings
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the settings the given flags produce",
	Long: `Show the settings the given flags produce, after validation.

Example:
  uart-terminal config show -b 9600 --parity even --enter crlf`,
	Args: cobra.NoArgs,
	RunE: runShowConfig,
}

// optionsCmd lists accepted values
var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List supported baud rates and charsets",
	Args:  cobra.NoArgs,
	Run:   runOptions,
}

func init() {
	config.BindFlags(showCmd.Flags(), &showSettings)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print as JSON")

	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(optionsCmd)
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	if err := showSettings.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(showSettings)
	}

	printSettingsTable(out, showSettings)
	return nil
}

func printSettingsTable(out io.Writer, s config.Settings) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	row := func(group, name string, value any) {
		fmt.Fprintf(w, "%s\t%s\t%v\n", group, name, value)
	}

	fmt.Fprintln(w, "GROUP\tSETTING\tVALUE")
	row("serial", "line", s.Serial)
	row("serial", "flow control", s.Serial.FlowControl)
	row("serial", "timeout", s.Serial.ReadTimeout())
	row("serial", "rts", optional(s.Serial.RTS))
	row("serial", "dtr", optional(s.Serial.DTR))
	row("tx", "enter", s.TX.Enter)
	row("tx", "backspace", s.TX.Backspace)
	row("tx", "delete", s.TX.Delete)
	row("tx", "ctrl keys", s.TX.CtrlKeys)
	row("tx", "alt keys", s.TX.AltKeys)
	row("tx", "charset", charsetName(s.TX.Charset))
	row("rx", "data type", s.RX.DataType)
	row("rx", "ansi escapes", s.RX.AnsiEscapeCodes)
	row("rx", "max escape length", s.RX.MaxEscapeCodeLength)
	row("rx", "newline", s.RX.NewLine)
	row("rx", "swallow newline", s.RX.SwallowNewLine)
	row("rx", "carriage return", s.RX.CarriageReturn)
	row("rx", "swallow carriage return", s.RX.SwallowCarriageReturn)
	row("rx", "non-visible", s.RX.NonVisible)
	row("session", "local echo", s.Session.LocalEcho)
	row("session", "poll interval", s.Session.PollInterval)
	row("session", "read size", s.Session.ReadSize)
	row("session", "max read failures", s.Session.MaxReadFailures)
	row("session", "break duration", s.Session.BreakDuration)
	row("session", "scrollback", s.Session.MaxLines)
	row("session", "history size", s.Session.HistorySize)
	row("session", "retries", s.Session.Retries)
}

func runOptions(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()

	rates := make([]string, len(serial.ValidBaudRates))
	for i, r := range serial.ValidBaudRates {
		rates[i] = fmt.Sprint(r)
	}

	fmt.Fprintf(out, "Baud rates: %s\n", strings.Join(rates, ", "))
	fmt.Fprintf(out, "Charsets:   utf-8, %s\n", strings.Join(tx.Charsets(), ", "))
}

func optional(b *bool) string {
	switch {
	case b == nil:
		return "unset"
	case *b:
		return "on"
	default:
		return "off"
	}
}

func charsetName(name string) string {
	if name == "" {
		return "utf-8"
	}
	return name
}
