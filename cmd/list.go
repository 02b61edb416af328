package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"uart-terminal/pkg/serial"
)

var (
	listDetails bool
	listFormat  string
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system.

USB adapters are shown with their vendor and product IDs when the
system reports them.`,
	Aliases: []string{"ls", "ports"},
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listDetails, "details", "d", false, "show detailed port information")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, csv, json)")
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := newProvider(logger).ListPorts()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	logger.Debug().Int("count", len(ports)).Msg("ports listed")

	out := cmd.OutOrStdout()
	switch listFormat {
	case "csv":
		return printPortsCSV(out, ports)
	case "json":
		return printPortsJSON(out, ports)
	case "table":
		printPortsTable(out, ports)
		return nil
	default:
		return fmt.Errorf("unknown format %q (table, csv, json)", listFormat)
	}
}

func printPortsTable(out io.Writer, ports []serial.PortInfo) {
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found.")
		return
	}

	fmt.Fprintf(out, "Found %d serial port(s):\n", len(ports))
	for _, p := range ports {
		fmt.Fprintf(out, "  %s", p.Name)

		if listDetails {
			if p.VID != "" || p.PID != "" {
				fmt.Fprintf(out, " [USB] VID:%s PID:%s", p.VID, p.PID)
			}
			if p.Description != "" {
				fmt.Fprintf(out, " - %s", p.Description)
			}
			if p.SerialNumber != "" {
				fmt.Fprintf(out, " (SN: %s)", p.SerialNumber)
			}
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "\nUse 'uart-terminal connect <port>' to open a port.")
}

func printPortsCSV(out io.Writer, ports []serial.PortInfo) error {
	w := csv.NewWriter(out)

	if listDetails {
		w.Write([]string{"port", "description", "vid", "pid", "serial_number"})
		for _, p := range ports {
			w.Write([]string{p.Name, p.Description, p.VID, p.PID, p.SerialNumber})
		}
	} else {
		w.Write([]string{"port"})
		for _, p := range ports {
			w.Write([]string{p.Name})
		}
	}

	w.Flush()
	return w.Error()
}

func printPortsJSON(out io.Writer, ports []serial.PortInfo) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if listDetails {
		if ports == nil {
			ports = []serial.PortInfo{}
		}
		return enc.Encode(ports)
	}

	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return enc.Encode(names)
}
