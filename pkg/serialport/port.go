// Package serialport provides a line-oriented transport over a serial link
// for instruments that speak terminated ASCII commands.
package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

var (
	// ErrTimeout is returned when no complete line arrives within the
	// configured budget.
	ErrTimeout = errors.New("serial read timed out")

	// ErrClosed is returned for operations on a closed port.
	ErrClosed = errors.New("serial port is closed")
)

// Config describes the serial mode and the line framing of the device.
// All fields are plain values so the config can be persisted as JSON.
type Config struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	Parity   string `json:"parity"` // "N", "E" or "O"
	StopBits int    `json:"stop_bits"`

	// Terminators appended to outgoing commands and expected on replies.
	// Some firmware revisions answer with a bare "\r".
	WriteTerminator string `json:"write_terminator"`
	ReadTerminator  string `json:"read_terminator"`

	// ReadTimeout bounds a single ReadLine, QueryTimeout a whole
	// command/reply exchange including discarded acknowledgement echoes.
	ReadTimeout  time.Duration `json:"read_timeout"`
	QueryTimeout time.Duration `json:"query_timeout"`

	// AckToken is the acknowledgement-only line some commands echo before
	// the actual payload. Query discards it.
	AckToken string `json:"ack_token"`
}

// DefaultConfig returns the factory settings of the HL-2000 series
// controllers: 9600 baud, 8N1, CRLF-terminated lines.
func DefaultConfig() Config {
	return Config{
		BaudRate:        9600,
		DataBits:        8,
		Parity:          "N",
		StopBits:        1,
		WriteTerminator: "\r\n",
		ReadTerminator:  "\r\n",
		ReadTimeout:     500 * time.Millisecond,
		QueryTimeout:    2 * time.Second,
		AckToken:        "OK",
	}
}

// withDefaults fills zero-valued fields so a partially populated config
// from the store or the setup form still yields a usable port.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaudRate == 0 {
		c.BaudRate = def.BaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = def.DataBits
	}
	if c.Parity == "" {
		c.Parity = def.Parity
	}
	if c.StopBits == 0 {
		c.StopBits = def.StopBits
	}
	if c.WriteTerminator == "" {
		c.WriteTerminator = def.WriteTerminator
	}
	if c.ReadTerminator == "" {
		c.ReadTerminator = def.ReadTerminator
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = def.QueryTimeout
	}
	if c.AckToken == "" {
		c.AckToken = def.AckToken
	}
	return c
}

func (c Config) mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
	}
	switch strings.ToUpper(c.Parity) {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", c.Parity)
	}
	switch c.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", c.StopBits)
	}
	return mode, nil
}

// rawPort is the slice of go.bug.st/serial.Port the transport relies on.
// Tests drive the framing logic through a fake implementation.
type rawPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// Port frames terminated ASCII lines over a serial connection. It is not
// safe for concurrent use; the lamp driver serializes access.
type Port struct {
	name    string
	cfg     Config
	conn    rawPort
	pending []byte
}

// Open opens the named serial port and flushes any stale input left over
// from a previous session.
func Open(name string, cfg Config) (*Port, error) {
	cfg = cfg.withDefaults()
	mode, err := cfg.mode()
	if err != nil {
		return nil, err
	}
	conn, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := conn.ResetInputBuffer(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("flush %s: %w", name, err)
	}
	return &Port{name: name, cfg: cfg, conn: conn}, nil
}

// Name returns the port identifier the transport was opened on.
func (p *Port) Name() string {
	return p.name
}

// WriteLine sends a command with the configured terminator appended.
func (p *Port) WriteLine(s string) error {
	if p.conn == nil {
		return ErrClosed
	}
	if _, err := p.conn.Write([]byte(s + p.cfg.WriteTerminator)); err != nil {
		return fmt.Errorf("write %q: %w", s, err)
	}
	return nil
}

// ReadLine returns the next complete line without its terminator. Bytes
// received past the terminator stay buffered for the following call.
func (p *Port) ReadLine() (string, error) {
	if p.conn == nil {
		return "", ErrClosed
	}
	return p.readLine(time.Now().Add(p.cfg.ReadTimeout))
}

func (p *Port) readLine(deadline time.Time) (string, error) {
	term := []byte(p.cfg.ReadTerminator)
	for {
		if i := bytes.Index(p.pending, term); i >= 0 {
			line := string(p.pending[:i])
			p.pending = append(p.pending[:0], p.pending[i+len(term):]...)
			return line, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrTimeout
		}
		if err := p.conn.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("set read timeout: %w", err)
		}
		buf := make([]byte, 64)
		n, err := p.conn.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			// An expired deadline surfaces as an empty read.
			return "", ErrTimeout
		}
		p.pending = append(p.pending, buf[:n]...)
	}
}

// Query writes a command and returns the first substantive reply line.
// Acknowledgement-only echoes ("OK") preceding the payload are discarded.
// The whole exchange is bounded by the query timeout.
func (p *Port) Query(cmd string) (string, error) {
	if p.conn == nil {
		return "", ErrClosed
	}
	if err := p.WriteLine(cmd); err != nil {
		return "", err
	}
	deadline := time.Now().Add(p.cfg.QueryTimeout)
	for {
		line, err := p.readLine(deadline)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == p.cfg.AckToken {
			continue
		}
		return line, nil
	}
}

// Close releases the underlying connection. Closing an already closed
// port is a no-op.
func (p *Port) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", p.name, err)
	}
	return nil
}
