package dz60

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

const (
	KEY_ESC byte = 0x1B

	TERMINAL_POLL_TIMEOUT = 10 * time.Millisecond
)

type TerminalOptions struct {
	// SeeValues prints every received byte as hex, except line feeds
	SeeValues bool
	Comm      *CommLog
}

// Passthrough echoes in to the link and the link to out until ESC is read
// from in, in is exhausted or ctx is done.
func Passthrough(ctx context.Context, t Transport, in io.Reader, out io.Writer, opts TerminalOptions) error {
	if err := t.SetReadTimeout(TERMINAL_POLL_TIMEOUT); err != nil {
		return errors.Wrap(err, "terminal: setting read timeout")
	}
	opts.Comm.Note("terminal started")

	keys := make(chan byte, 64)
	go func() {
		defer close(keys)
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case keys <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	rx := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return nil
		case k, ok := <-keys:
			if !ok || k == KEY_ESC {
				return nil
			}
			if _, err := t.Write([]byte{k}); err != nil {
				return errors.Wrap(err, "terminal: port broken")
			}
			opts.Comm.Tx("terminal", []byte{k})
			continue
		default:
		}

		n, err := t.Read(rx)
		if err != nil {
			return errors.Wrap(err, "terminal: port broken")
		}
		if n == 0 {
			continue
		}
		opts.Comm.Rx("terminal", rx[:n])
		if err = writeTerminal(out, rx[:n], opts.SeeValues); err != nil {
			return err
		}
	}
}

func writeTerminal(out io.Writer, b []byte, seeValues bool) (err error) {
	if !seeValues {
		_, err = out.Write(b)
		return
	}
	for _, c := range b {
		if c == '\n' {
			_, err = out.Write([]byte{c})
		} else {
			_, err = fmt.Fprintf(out, "%02X ", c)
		}
		if err != nil {
			return
		}
	}
	return
}
