package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"uart-terminal/pkg/app"
	"uart-terminal/pkg/config"
	"uart-terminal/pkg/display"
	"uart-terminal/pkg/history"
	"uart-terminal/pkg/rx"
	"uart-terminal/pkg/session"
	"uart-terminal/pkg/tx"
)

var (
	sendSettings = config.Default()
	sendHex      bool
	sendLine     bool
	sendWait     time.Duration
	sendDump     string
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <port> <data>",
	Short: "Send data to a serial port and print the reply",
	Long: `Send text or hex bytes to a serial port, then print what the device
sends back during the wait time.

Examples:
  # Send AT followed by CR and wait for the reply
  uart-terminal send /dev/ttyUSB0 AT --line --enter cr --wait 500ms

  # Send raw bytes
  uart-terminal send COM3 "DE AD BE EF" --hex

  # Print the exchange as a hex transcript
  uart-terminal send COM3 "AT" -l -w 1s --dump hex`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

func init() {
	config.BindFlags(sendCmd.Flags(), &sendSettings)
	sendCmd.Flags().BoolVarP(&sendHex, "hex", "x", false, "data is hex bytes such as \"48 69 0A\"")
	sendCmd.Flags().BoolVarP(&sendLine, "line", "l", false, "press Enter after the data")
	sendCmd.Flags().DurationVarP(&sendWait, "wait", "w", 0, "time to print received data after sending")
	sendCmd.Flags().StringVar(&sendDump, "dump", "", "print the exchange afterwards (plain, timestamped, json, hex)")
}

func runSend(cmd *cobra.Command, args []string) error {
	var dump history.FileFormat
	if sendDump != "" {
		var err error
		if dump, err = history.ParseFileFormat(sendDump); err != nil {
			return err
		}
	}

	var payload []byte
	if sendHex {
		var err error
		if payload, err = tx.ParseHex(args[1]); err != nil {
			return err
		}
	}

	settings := sendSettings
	settings.Port = args[0]

	sw := display.NewStreamWriter(cmd.OutOrStdout(), display.FilterRX, rx.ColorDefault)
	sess, err := session.New(newProvider(logger), settings,
		session.WithLogger(logger),
		session.WithSink(app.StreamSink(sw, logger)))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	if err := sess.Open(ctx); err != nil {
		return err
	}
	defer sess.Close()

	if sendHex {
		err = sess.SendBytes(payload)
	} else {
		err = sess.SendText(args[1])
	}
	if err == nil && sendLine {
		err = sess.Send(tx.Event{Key: tx.KeyEnter})
	}
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}

	if sendWait > 0 {
		timer := time.NewTimer(sendWait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	if sendDump != "" {
		fmt.Fprintln(cmd.OutOrStdout())
		if err := sess.History().Export(cmd.OutOrStdout(), dump); err != nil {
			return fmt.Errorf("failed to dump history: %w", err)
		}
	}

	st := sess.Stats()
	logger.Info().
		Str("port", settings.Port).
		Int64("sent", st.BytesSent).
		Int64("received", st.BytesRecv).
		Msg("send finished")

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nsent %d bytes, received %d bytes\n", st.BytesSent, st.BytesRecv)
	}
	return nil
}
