package dz60

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// mockTransport simulates the bootloader side of the link. Every Write
// consumes the next scripted reply and makes it readable.
type mockTransport struct {
	mu       sync.Mutex
	writes   [][]byte
	replies  [][]byte
	readBuf  bytes.Buffer
	breaks   int
	timeouts []time.Duration
	closed   int

	shortWrite int // if > 0 Write accepts at most this many bytes
	writeErr   error
	readErr    error
}

func newMockTransport(replies ...[]byte) *mockTransport {
	return &mockTransport{replies: replies}
}

func (m *mockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.readBuf.Len() == 0 {
		return 0, nil
	}
	return m.readBuf.Read(p)
}

func (m *mockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	if len(m.replies) > 0 {
		m.readBuf.Write(m.replies[0])
		m.replies = m.replies[1:]
	}
	if m.shortWrite > 0 && m.shortWrite < len(p) {
		return m.shortWrite, nil
	}
	return len(p), nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockTransport) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts = append(m.timeouts, t)
	return nil
}

func (m *mockTransport) Break(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaks++
	return nil
}

func (m *mockTransport) written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.writes...)
}

// closeRecorder is an io.WriteCloser that remembers Close calls
type closeRecorder struct {
	bytes.Buffer
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

var errLinkDown = errors.New("link down")

const (
	testTool byte = 0xDE
	testEcu  byte = 0x0E
)

var testTime = time.Date(2023, time.October, 24, 13, 5, 9, 0, time.Local)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ToolID = testTool
	cfg.EcuID = testEcu
	cfg.ConnectInterval = time.Millisecond
	cfg.BreakDuration = 0
	cfg.ReadTimeout = 10 * time.Millisecond
	cfg.Now = func() time.Time { return testTime }
	return cfg
}

func connectReply() []byte {
	return append([]byte{SYNC0}, ConnectAck(testTool, testEcu)...)
}

func ackReply() []byte {
	return AckResponse(testTool, testEcu)
}

func statusReply(status byte) []byte {
	return []byte{SYNC0, SYNC1, testTool, testEcu, 0x01, status}
}

func wire(cmd Command, payload ...byte) []byte {
	f := &Frame{Dest: testEcu, Src: testTool, Cmd: cmd, Payload: payload}
	b, _ := f.ToWire()
	return b
}
