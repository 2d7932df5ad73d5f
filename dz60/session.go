package dz60

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type State int

const (
	STATE_DISCONNECTED State = iota
	STATE_CONNECTING
	STATE_CONNECTED
	STATE_FINGERPRINT_WRITTEN
	STATE_ERASING
	STATE_PROGRAMMING
	STATE_RUNNING
	STATE_DONE
	STATE_FAILED
)

func (s State) String() string {
	switch s {
	case STATE_DISCONNECTED:
		return "disconnected"
	case STATE_CONNECTING:
		return "connecting"
	case STATE_CONNECTED:
		return "connected"
	case STATE_FINGERPRINT_WRITTEN:
		return "fingerprint written"
	case STATE_ERASING:
		return "erasing"
	case STATE_PROGRAMMING:
		return "programming"
	case STATE_RUNNING:
		return "running"
	case STATE_DONE:
		return "done"
	case STATE_FAILED:
		return "failed"
	}
	return fmt.Sprintf("unknown state %d", int(s))
}

// Progress is reported after every erase and every programmed row.
type Progress struct {
	State     State
	Sector    uint16
	Address   uint16
	RowsDone  int
	RowsTotal int
}

// Config holds everything a download needs besides the link and the log.
type Config struct {
	ToolID byte
	EcuID  byte

	// ReadTimeout bounds every command/response exchange
	ReadTimeout time.Duration
	// ConnectInterval is the period of break + connect request retransmission
	ConnectInterval time.Duration
	// ConnectPollTimeout is the read timeout while waiting for the connect reply
	ConnectPollTimeout time.Duration
	// ConnectTimeout limits the connect phase, 0 waits until ctx is cancelled
	ConnectTimeout time.Duration
	BreakDuration  time.Duration

	// LegacyFraming leaves the checksum off every frame except program rows
	LegacyFraming bool

	Now      func() time.Time
	Progress func(Progress)
}

func DefaultConfig() Config {
	return Config{
		ToolID:             DEFAULT_TOOL_ID,
		EcuID:              DEFAULT_ECU_ID,
		ReadTimeout:        DEFAULT_READ_TIMEOUT,
		ConnectInterval:    100 * time.Millisecond,
		ConnectPollTimeout: 0,
		BreakDuration:      250 * time.Millisecond,
		Now:                time.Now,
	}
}

// Session drives the bootloader of one ECU over an exclusively owned
// transport. It is not safe for concurrent use.
type Session struct {
	cfg     Config
	t       Transport
	comm    *CommLog
	state   State
	sector  uint16
	timeout time.Duration
	closed  bool

	rowsDone  int
	rowsTotal int
}

// NewSession takes ownership of t and comm, both are released by Close.
// A nil comm discards the communication log.
func NewSession(cfg Config, t Transport, comm *CommLog) *Session {
	if t == nil {
		panic("transport cannot be nil")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ConnectInterval <= 0 {
		cfg.ConnectInterval = 100 * time.Millisecond
	}
	if comm == nil {
		comm = DiscardCommLog()
	}
	return &Session{
		cfg:     cfg,
		t:       t,
		comm:    comm,
		state:   STATE_DISCONNECTED,
		timeout: -1,
	}
}

func (s *Session) State() State {
	return s.state
}

// Sector is the start address of the sector under erase or programming
func (s *Session) Sector() uint16 {
	return s.sector
}

// Transport gives access to the link, e.g. for a terminal after the download
func (s *Session) Transport() Transport {
	return s.t
}

func (s *Session) CommLog() *CommLog {
	return s.comm
}

// Close releases the transport and the communication log. It is safe to call
// more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	errT := s.t.Close()
	errC := s.comm.Close()
	if errT != nil {
		return errors.Wrap(errT, "closing serial port")
	}
	if errC != nil {
		return errors.Wrap(errC, "closing communication log")
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.state = STATE_FAILED
	return err
}

func (s *Session) newFrame(cmd Command, payload []byte) *Frame {
	return &Frame{
		Dest:        s.cfg.EcuID,
		Src:         s.cfg.ToolID,
		Cmd:         cmd,
		Payload:     payload,
		NoChecksum:  s.cfg.LegacyFraming && cmd != COMMAND_PROGRAM,
		RowChecksum: s.cfg.LegacyFraming && cmd == COMMAND_PROGRAM,
	}
}

func (s *Session) setTimeout(d time.Duration) error {
	if d == s.timeout {
		return nil
	}
	if err := s.t.SetReadTimeout(d); err != nil {
		return errors.Wrap(err, "setting read timeout")
	}
	s.timeout = d
	return nil
}

func (s *Session) send(op string, f *Frame) error {
	out, err := f.ToWire()
	if err != nil {
		return err
	}
	s.comm.Tx(op, out)
	n, err := s.t.Write(out)
	if err != nil {
		return errors.Wrapf(err, "%s: write failed", op)
	}
	if n < len(out) {
		return &ShortWriteError{Op: op, Written: n, Want: len(out)}
	}
	return nil
}

func (s *Session) receive(op string, n int) ([]byte, error) {
	if err := s.setTimeout(s.cfg.ReadTimeout); err != nil {
		return nil, err
	}
	answer, err := readFull(s.t, n)
	if len(answer) > 0 {
		s.comm.Rx(op, answer)
	}
	if err != nil {
		return answer, errors.Wrapf(err, "%s: read failed", op)
	}
	if len(answer) == 0 {
		return nil, &NoResponseError{Op: op}
	}
	if len(answer) < n {
		return answer, &ShortResponseError{Op: op, Want: n, Got: answer}
	}
	return answer, nil
}

// exchange sends f and expects the plain acknowledgment of the ECU
func (s *Session) exchange(ctx context.Context, op string, f *Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(op, f); err != nil {
		return err
	}
	r, err := s.response(op)
	if err != nil {
		return err
	}
	if !r.From(s.cfg.ToolID, s.cfg.EcuID) {
		got, _ := r.ToWire()
		return &UnexpectedAckError{Op: op, Want: AckResponse(s.cfg.ToolID, s.cfg.EcuID), Got: got}
	}
	return nil
}

// response reads one command reply. A non-zero status is returned as
// *DeviceError whatever the addressing of the reply.
func (s *Session) response(op string) (*Response, error) {
	answer, err := s.receive(op, RESPONSE_LEN)
	if err != nil {
		return nil, err
	}
	r := &Response{}
	if err = r.FromWire(answer); err != nil {
		return nil, &UnexpectedAckError{Op: op, Want: AckResponse(s.cfg.ToolID, s.cfg.EcuID), Got: answer}
	}
	if de := DecodeStatus(r.Status); de.Failed() {
		de.Op = op
		return nil, &de
	}
	return r, nil
}

// Connect resets the target with a break and requests the bootloader every
// ConnectInterval until it answers. Without ConnectTimeout it waits until ctx
// is cancelled, so the device can also be reset manually.
func (s *Session) Connect(ctx context.Context) (err error) {
	s.state = STATE_CONNECTING
	parent := ctx
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := s.newFrame(COMMAND_CONNECT, nil).ToWire()
	if err != nil {
		return s.fail(err)
	}
	want := ConnectAck(s.cfg.ToolID, s.cfg.EcuID)
	if err = s.setTimeout(s.cfg.ConnectPollTimeout); err != nil {
		return s.fail(err)
	}

	next := time.Now()
	one := make([]byte, 1)
	for {
		if err = ctx.Err(); err != nil {
			if s.cfg.ConnectTimeout > 0 && parent.Err() == nil {
				err = ErrConnectTimeout
			}
			s.comm.Note("connect aborted")
			return s.fail(errors.Wrap(err, "connect"))
		}

		if !time.Now().Before(next) {
			s.comm.Tx("connect", conn)
			if err = s.t.Break(s.cfg.BreakDuration); err != nil {
				return s.fail(errors.Wrap(err, "connect: sending break"))
			}
			n, werr := s.t.Write(conn)
			if werr != nil {
				return s.fail(errors.Wrap(werr, "connect: write failed"))
			}
			if n < len(conn) {
				return s.fail(&ShortWriteError{Op: "connect", Written: n, Want: len(conn)})
			}
			next = time.Now().Add(s.cfg.ConnectInterval)
		}

		n, rerr := s.t.Read(one)
		if rerr != nil {
			return s.fail(errors.Wrap(rerr, "connect: read failed"))
		}
		if n == 0 || one[0] != SYNC0 {
			continue
		}

		if err = s.setTimeout(s.cfg.ReadTimeout); err != nil {
			return s.fail(err)
		}
		answer, rerr := readFull(s.t, CONNECT_RESPONSE_LEN)
		if rerr != nil {
			return s.fail(errors.Wrap(rerr, "connect: read failed"))
		}
		if len(answer) > 0 {
			s.comm.Rx("connect", answer)
		}
		if bytes.Equal(answer, want) {
			s.state = STATE_CONNECTED
			log.WithFields(log.Fields{"tool": s.cfg.ToolID, "ecu": s.cfg.EcuID}).Debug("bootloader connected")
			return nil
		}
		if err = s.setTimeout(s.cfg.ConnectPollTimeout); err != nil {
			return s.fail(err)
		}
	}
}

// WriteFingerprint stores the current local time in the ECU to mark the download.
func (s *Session) WriteFingerprint(ctx context.Context) error {
	f := s.newFrame(COMMAND_WRITE_FINGERPRINT, FingerprintBytes(s.cfg.Now()))
	if err := s.exchange(ctx, "write fingerprint", f); err != nil {
		return s.fail(err)
	}
	s.state = STATE_FINGERPRINT_WRITTEN
	return nil
}

// EraseSector erases the sector that contains addr.
func (s *Session) EraseSector(ctx context.Context, addr uint16) error {
	s.state = STATE_ERASING
	s.sector = addr
	f := s.newFrame(COMMAND_ERASE, []byte{byte(addr >> 8), byte(addr & 0x00ff)})
	if err := s.exchange(ctx, fmt.Sprintf("erase sector %#04x", addr), f); err != nil {
		return s.fail(err)
	}
	return nil
}

// ProgramRow writes 1 to MAX_ROW_LEN bytes starting at addr.
func (s *Session) ProgramRow(ctx context.Context, addr uint16, data []byte) error {
	op := fmt.Sprintf("program %#04x", addr)
	if len(data) == 0 || len(data) > MAX_ROW_LEN {
		return s.fail(errors.Errorf("%s: row length %d out of range 1..%d", op, len(data), MAX_ROW_LEN))
	}
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	s.state = STATE_PROGRAMMING

	if err := s.send(op, s.newFrame(COMMAND_PROGRAM, ProgramPayload(addr, data))); err != nil {
		return s.fail(err)
	}
	if _, err := s.response(op); err != nil {
		return s.fail(err)
	}
	return nil
}

// ProgramArea splits a into rows of MAX_ROW_LEN bytes and programs them in order.
func (s *Session) ProgramArea(ctx context.Context, a Area) error {
	for off := 0; off < a.Len(); off += MAX_ROW_LEN {
		end := off + MAX_ROW_LEN
		if end > a.Len() {
			end = a.Len()
		}
		addr := a.Start + uint16(off)
		log.WithFields(log.Fields{
			"addr": fmt.Sprintf("%#04x", addr),
			"len":  end - off,
			"info": AddressInfo(addr),
		}).Debug("program")
		if err := s.ProgramRow(ctx, addr, a.Data[off:end]); err != nil {
			return err
		}
		s.rowsDone++
		s.report(addr)
	}
	return nil
}

// RunApplication starts the application. The ECU leaves the bootloader
// without answering.
func (s *Session) RunApplication(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}
	if err := s.send("run", s.newFrame(COMMAND_CONTROL, []byte{byte(CONTROL_SUB_RUN_APP)})); err != nil {
		return s.fail(err)
	}
	s.state = STATE_RUNNING
	return nil
}

func (s *Session) report(addr uint16) {
	if s.cfg.Progress == nil {
		return
	}
	s.cfg.Progress(Progress{
		State:     s.state,
		Sector:    s.sector,
		Address:   addr,
		RowsDone:  s.rowsDone,
		RowsTotal: s.rowsTotal,
	})
}

// RowCount is the number of program frames needed for sectors
func RowCount(sectors []Sector) (n int) {
	for _, s := range sectors {
		for _, a := range s.Areas {
			n += (a.Len() + MAX_ROW_LEN - 1) / MAX_ROW_LEN
		}
	}
	return
}

// Download runs the complete sequence for the used sectors: connect, write the
// fingerprint, erase the vector sector, erase and program every other sector
// in ascending order, program the vector sector and start the application.
//
// The vector sector goes first on erase and last on program so an
// interrupted download never leaves a reset vector pointing into partial code.
func (s *Session) Download(ctx context.Context, sectors []Sector) error {
	ordered := make([]Sector, len(sectors))
	copy(ordered, sectors)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].IsVector() != ordered[j].IsVector() {
			return ordered[j].IsVector()
		}
		return ordered[i].Start < ordered[j].Start
	})
	s.rowsDone = 0
	s.rowsTotal = RowCount(ordered)

	log.Info("Connect to device (press Ctrl+C to abort)")
	if err := s.Connect(ctx); err != nil {
		return err
	}

	log.Info("Write fingerprint")
	if err := s.WriteFingerprint(ctx); err != nil {
		return err
	}

	vector := mustSector(VECTOR_SECTOR_START, VECTOR_SECTOR_LEN)
	log.WithFields(log.Fields{
		"sector": fmt.Sprintf("%#04x - %#04x", vector.Start, vector.End()),
		"info":   AddressInfo(RESET_VECTOR_ADDRESS),
	}).Info("erase")
	if err := s.EraseSector(ctx, RESET_VECTOR_ADDRESS); err != nil {
		return err
	}
	s.report(RESET_VECTOR_ADDRESS)

	for _, sec := range ordered {
		if !sec.IsVector() {
			log.WithFields(log.Fields{
				"sector": fmt.Sprintf("%#04x - %#04x", sec.Start, sec.End()),
				"info":   AddressInfo(sec.Start),
			}).Info("erase")
			if err := s.EraseSector(ctx, sec.Start); err != nil {
				return err
			}
			s.report(sec.Start)
		}
		s.sector = sec.Start
		for _, a := range sec.Areas {
			if err := s.ProgramArea(ctx, a); err != nil {
				return err
			}
		}
	}

	log.Info("Run application")
	if err := s.RunApplication(ctx); err != nil {
		return err
	}
	s.state = STATE_DONE
	return nil
}
