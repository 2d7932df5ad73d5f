package dz60

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DEFAULT_COMM_LOG = "./dzdl.com"

// CommLog is the plain text record of every frame that crossed the link.
// It is a separate logger so the console verbosity does not affect it.
type CommLog struct {
	l      *log.Logger
	closer io.Closer
}

// NewCommLog writes the communication log to w. When w is also an io.Closer
// it is closed by Close.
func NewCommLog(w io.Writer) *CommLog {
	l := log.New()
	l.SetOutput(w)
	l.SetLevel(log.DebugLevel)
	l.SetFormatter(&log.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		DisableSorting:   false,
		QuoteEmptyFields: true,
	})
	c := &CommLog{l: l}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// CreateCommLog truncates or creates the log file at path
func CreateCommLog(path string) (*CommLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create communication log %s", path)
	}
	return NewCommLog(f), nil
}

// DiscardCommLog drops everything
func DiscardCommLog() *CommLog {
	return NewCommLog(io.Discard)
}

func (c *CommLog) Tx(op string, b []byte) {
	c.frame(op, "tx", b)
}

func (c *CommLog) Rx(op string, b []byte) {
	c.frame(op, "rx", b)
}

func (c *CommLog) frame(op, dir string, b []byte) {
	if c == nil {
		return
	}
	c.l.WithFields(log.Fields{"op": op, "dir": dir, "len": len(b)}).Debug(HexString(b))
}

func (c *CommLog) Note(msg string) {
	if c == nil {
		return
	}
	c.l.Info(msg)
}

func (c *CommLog) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
