package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"uart-terminal/pkg/display"
	"uart-terminal/pkg/history"
	"uart-terminal/pkg/rx"
	"uart-terminal/pkg/serial"
	"uart-terminal/pkg/session"
)

// Runner opens a session, drives it with a UI until the user leaves or the
// process is interrupted, then closes it and prints a summary
type Runner struct {
	session *session.Session
	logger  zerolog.Logger
	out     io.Writer
}

// NewRunner creates a runner. The summary is written to out.
func NewRunner(sess *session.Session, out io.Writer, logger zerolog.Logger) *Runner {
	return &Runner{session: sess, logger: logger, out: out}
}

// RunInteractive runs the session in the full screen UI
func (r *Runner) RunInteractive(ctx context.Context, opts ...Option) error {
	return r.run(ctx, func(ctx context.Context) error {
		opts = append([]Option{WithLogger(r.logger)}, opts...)
		return NewApplication(r.session, opts...).Run(ctx)
	})
}

// RunHeadless streams the session to the terminal and sends keystrokes read
// from in. The session must have been created with a sink from StreamSink.
func (r *Runner) RunHeadless(ctx context.Context, in io.Reader) error {
	return r.run(ctx, func(ctx context.Context) error {
		fmt.Fprintf(r.out, "Connected to %s (%s). Press Ctrl+] to exit.\r\n",
			r.session.Port(), r.session.Settings().Serial)
		return RunHeadless(ctx, r.session, in, r.logger)
	})
}

func (r *Runner) run(ctx context.Context, fn func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.session.Open(ctx); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	runErr := fn(ctx)

	if err := r.session.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("close failed")
	}

	r.printSummary()
	return runErr
}

// printSummary prints a summary of the session
func (r *Runner) printSummary() {
	PrintSummary(r.out, r.session.Stats(), r.session.History().GetStats())
}

// PrintSummary writes session statistics and the retained history to w
func PrintSummary(w io.Writer, st session.Stats, hs history.HistoryStats) {
	fmt.Fprintf(w, "\n=== Session Summary ===\n")
	fmt.Fprintf(w, "Duration: %v\n", st.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Bytes Sent: %d\n", st.BytesSent)
	fmt.Fprintf(w, "Bytes Received: %d\n", st.BytesRecv)
	if st.Breaks > 0 {
		fmt.Fprintf(w, "Breaks Sent: %d\n", st.Breaks)
	}
	if st.ReadErrors > 0 {
		fmt.Fprintf(w, "Read Errors: %d\n", st.ReadErrors)
	}
	fmt.Fprintf(w, "History: %d entries (%d TX, %d RX)\n", hs.TotalEntries, hs.TXEntries, hs.RXEntries)
	fmt.Fprintf(w, "=======================\n")
}

// StreamSink returns a session sink that renders updates through w
func StreamSink(w *display.StreamWriter, logger zerolog.Logger) session.Sink {
	return func(origin display.Origin, seq uint64, instrs []rx.Instruction) {
		if err := w.Write(origin, instrs); err != nil {
			logger.Warn().Err(err).Uint64("seq", seq).Msg("stream write failed")
		}
	}
}

// RunHeadless sends keystrokes read from in until Ctrl+] is pressed, the
// connection is lost or ctx is done. A terminal on in is put into raw mode
// for the duration. End of input stops reading but keeps the session up.
func RunHeadless(ctx context.Context, sess *session.Session, in io.Reader, logger zerolog.Logger) error {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer term.Restore(fd, state)
	}

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	var dec keyDecoder
	done := sess.Done()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			if sess.State() == serial.StateError {
				return session.ErrDisconnected
			}
			return nil
		case err := <-sess.Errors():
			logger.Warn().Err(err).Msg("session error")
		case err := <-readErr:
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to read input: %w", err)
			}
			logger.Debug().Msg("end of input")
			readErr = nil
		case chunk := <-chunks:
			events, quit := dec.Feed(chunk)
			for _, ev := range events {
				if err := sess.Send(ev); err != nil && !errors.Is(err, session.ErrPaused) {
					return err
				}
			}
			if quit {
				return nil
			}
		}
	}
}
