package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"uart-terminal/pkg/serial"
)

var (
	// Root command flags
	verbose bool
	logFile string

	logger    = zerolog.Nop()
	logCloser io.Closer

	// newProvider creates the serial provider used by every command
	newProvider = func(logger zerolog.Logger) serial.Provider {
		return serial.NewManager(serial.WithLogger(logger))
	}

	// Root command
	rootCmd = &cobra.Command{
		Use:               "uart-terminal",
		Short:             "A serial port (UART) terminal",
		Version:           "1.0.0",
		Run:               runTerminal,
		PersistentPreRunE: setupLogging,
		PersistentPostRun: closeLogging,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printOpenHints(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write JSON logs to this file")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(sendCmd)
}

// setupLogging builds the logger from the root flags. Logs go to the log
// file when one is given, otherwise to stderr in verbose mode only.
func setupLogging(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logCloser = f
		logger = zerolog.New(f).Level(level).With().Timestamp().Logger()
	case verbose:
		console := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: "15:04:05.000"}
		logger = zerolog.New(console).Level(level).With().Timestamp().Logger()
	default:
		logger = zerolog.Nop()
	}

	logger.Debug().Str("command", cmd.Name()).Strs("args", args).Msg("starting")
	return nil
}

func closeLogging(cmd *cobra.Command, args []string) {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

// runTerminal is the main entry point for the terminal
func runTerminal(cmd *cobra.Command, args []string) {
	// Always show help when root command is called without subcommands
	cmd.Help()
}
