package telnetserver

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gliderlabs/ssh"

	"github.com/stlalpha/vision3-telnet/internal/logging"
	"github.com/stlalpha/vision3-telnet/internal/telnet"
)

// TelnetConn wraps a net.Conn with telnet protocol awareness. The IAC
// state machine, option negotiation, and sub-negotiation parsing are all
// delegated to a telnet.StreamReader; this type owns the socket, the
// read-interrupt plumbing, and translating NAWS/TTYPE sub-negotiations
// into the ssh.Session-shaped surface the rest of the server expects.
type TelnetConn struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex // protects writes to conn

	stream *telnet.StreamReader

	width  int
	height int
	sizeMu sync.RWMutex // protects width/height

	winCh chan ssh.Window // sends window size changes to adapter

	closed int32 // atomic flag

	termType   string
	termTypeMu sync.RWMutex

	// Read interrupt: when the channel is closed, a goroutine sets a
	// short read deadline on the conn to unblock any pending Read().
	readInterrupt <-chan struct{}
	riMu          sync.Mutex
}

// tcTransport adapts a *TelnetConn to telnet.Transport.
type tcTransport struct{ tc *TelnetConn }

func (t tcTransport) Write(p []byte) (int, error) {
	t.tc.writeMu.Lock()
	defer t.tc.writeMu.Unlock()
	return t.tc.conn.Write(p)
}

// PauseWriting and ResumeWriting have no effect at this layer: this
// server does not yet throttle outbound writes in response to LFLOW.
func (t tcTransport) PauseWriting()  {}
func (t tcTransport) ResumeWriting() {}

// NewTelnetConn wraps an existing net.Conn with telnet protocol handling,
// using the engine's default tunables.
func NewTelnetConn(conn net.Conn) *TelnetConn {
	return NewTelnetConnWithConfig(conn, telnet.DefaultConfig())
}

// NewTelnetConnWithConfig wraps conn using cfg for the underlying
// telnet.StreamReader, letting callers supply hot-reloaded tunables from
// internal/telnetconfig.
func NewTelnetConnWithConfig(conn net.Conn, cfg telnet.Config) *TelnetConn {
	tc := &TelnetConn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 256),
		width:  80,
		height: 25,
		winCh:  make(chan ssh.Window, 1),
	}
	tc.stream = telnet.NewStreamReader(telnet.RoleServer, tcTransport{tc}, cfg, logging.Default())
	tc.stream.SetExtCallback(telnet.NAWS, tc.onNAWS)
	tc.stream.SetExtCallback(telnet.TTYPE, tc.onTTYPE)
	return tc
}

func (tc *TelnetConn) onNAWS(_ byte, v any) {
	ws, ok := v.(telnet.WindowSize)
	if !ok {
		return
	}
	width, height := int(ws.Cols), int(ws.Rows)
	log.Printf("INFO: Telnet NAWS: %dx%d", width, height)

	if width <= 0 || height <= 0 || width > 255 || height > 255 {
		log.Printf("WARN: Telnet NAWS: invalid dimensions %dx%d, using defaults", width, height)
		width, height = 80, 25
	}
	if width > 80 {
		width = 80
	}
	if height > 25 {
		height = 25
	}

	tc.sizeMu.Lock()
	tc.width, tc.height = width, height
	tc.sizeMu.Unlock()

	select {
	case tc.winCh <- ssh.Window{Width: width, Height: height}:
	default:
	}
}

func (tc *TelnetConn) onTTYPE(_ byte, v any) {
	name, ok := v.(string)
	if !ok {
		return
	}
	t := strings.ToLower(strings.TrimSpace(name))
	if t == "" {
		return
	}
	tc.termTypeMu.Lock()
	tc.termType = t
	tc.termTypeMu.Unlock()
	log.Printf("INFO: Telnet TERM_TYPE: %s", t)
}

// Negotiate sends telnet option negotiations and waits for client
// responses. Phase 1 proposes server echo, suppress-go-ahead in both
// directions, disabled LINEMODE, and client-reported NAWS/TERM_TYPE.
// Phase 2, only if the client agreed to TERM_TYPE, waits for the
// IS <string> reply that the stream's own negotiation follow-up already
// requested.
func (tc *TelnetConn) Negotiate() error {
	tc.stream.RequestWill(telnet.ECHO)
	tc.stream.RequestWill(telnet.SGA)
	tc.stream.RequestDo(telnet.SGA)
	tc.stream.SendNegotiation(telnet.DONT, telnet.LINEMODE)
	tc.stream.RequestDo(telnet.NAWS)
	tc.stream.RequestDo(telnet.TTYPE)

	tc.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	tc.drainNegotiations()
	tc.conn.SetReadDeadline(time.Time{})

	if tc.stream.RemoteOptionEnabled(telnet.TTYPE) {
		tc.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		tc.drainNegotiations()
		tc.conn.SetReadDeadline(time.Time{})
	}

	return nil
}

// drainNegotiations reads and feeds any pending bytes through the stream
// so negotiation replies and sub-negotiations are processed; any
// application data surfaced during this window is discarded; real data
// is never expected this early in the exchange.
func (tc *TelnetConn) drainNegotiations() {
	buf := make([]byte, 64)
	for {
		n, err := tc.reader.Read(buf)
		for i := 0; i < n; i++ {
			if _, _, ferr := tc.stream.Feed(buf[i]); ferr != nil {
				return
			}
		}
		if err != nil {
			break
		}
		if tc.reader.Buffered() == 0 {
			break
		}
	}
}

// TermType returns the terminal type string reported by the client via
// TERM_TYPE negotiation (RFC 1091). Returns "ansi" if no type was
// negotiated.
func (tc *TelnetConn) TermType() string {
	tc.termTypeMu.RLock()
	t := tc.termType
	tc.termTypeMu.RUnlock()
	if t == "" {
		return "ansi"
	}
	return t
}

// SetReadInterrupt sets a channel that, when closed, causes any blocked Read()
// to return io.EOF without consuming data. This works by setting a past read
// deadline on the underlying connection to unblock the blocked read syscall.
// Pass nil to clear the interrupt and reset the deadline.
func (tc *TelnetConn) SetReadInterrupt(ch <-chan struct{}) {
	tc.riMu.Lock()
	tc.readInterrupt = ch
	tc.riMu.Unlock()

	if ch == nil {
		tc.conn.SetReadDeadline(time.Time{})
		return
	}

	go func(ch <-chan struct{}) {
		<-ch
		tc.riMu.Lock()
		stillCurrent := tc.readInterrupt == ch
		tc.riMu.Unlock()
		if stillCurrent {
			tc.conn.SetReadDeadline(time.Now())
		}
	}(ch)
}

// Read reads data from the telnet connection, stripping IAC commands
// transparently via the underlying stream.
func (tc *TelnetConn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	written := 0
	for written == 0 {
		buf := make([]byte, len(p))
		n, err := tc.reader.Read(buf)

		var feedErr error
		for i := 0; i < n && written < len(p); i++ {
			out, ok, ferr := tc.stream.Feed(buf[i])
			if ferr != nil {
				feedErr = ferr
				break
			}
			if ok {
				p[written] = out
				written++
			}
		}

		if feedErr != nil {
			if written > 0 {
				return written, nil
			}
			return 0, feedErr
		}

		if err != nil {
			tc.riMu.Lock()
			interrupt := tc.readInterrupt
			tc.riMu.Unlock()
			if interrupt != nil {
				select {
				case <-interrupt:
					if written > 0 {
						return written, nil
					}
					return 0, io.EOF
				default:
				}
			}

			if written > 0 {
				return written, nil
			}
			return 0, err
		}
	}

	return written, nil
}

// Write writes data to the telnet connection, escaping any 0xFF bytes as
// IAC IAC via the underlying stream.
func (tc *TelnetConn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return tc.stream.WriteData(p)
}

// Close closes the telnet connection.
func (tc *TelnetConn) Close() error {
	if atomic.CompareAndSwapInt32(&tc.closed, 0, 1) {
		close(tc.winCh)
		return tc.conn.Close()
	}
	return nil
}

// RemoteAddr returns the remote network address.
func (tc *TelnetConn) RemoteAddr() net.Addr {
	return tc.conn.RemoteAddr()
}

// LocalAddr returns the local network address.
func (tc *TelnetConn) LocalAddr() net.Addr {
	return tc.conn.LocalAddr()
}

// WindowSize returns the current terminal dimensions.
func (tc *TelnetConn) WindowSize() (width, height int) {
	tc.sizeMu.RLock()
	defer tc.sizeMu.RUnlock()
	return tc.width, tc.height
}

// DetectTerminalSize performs terminal size detection using ANSI cursor position
// reporting (CPR) as the primary method, with NAWS fallback and 80x25 defaults.
// CPR is the most reliable method because it detects the actual usable area,
// accounting for status bars (e.g., SyncTerm's status row steals one row from NAWS).
func (tc *TelnetConn) DetectTerminalSize() (width, height int, method string) {
	w, h, err := tc.detectViaCursorPositioning()
	if err == nil && w > 0 && h > 0 {
		tc.sizeMu.Lock()
		tc.width = w
		tc.height = h
		tc.sizeMu.Unlock()

		select {
		case tc.winCh <- ssh.Window{Width: w, Height: h}:
		default:
		}

		log.Printf("INFO: Telnet terminal size detected via ANSI CPR: %dx%d", w, h)
		return w, h, "ANSI"
	}
	if err != nil {
		log.Printf("DEBUG: Telnet ANSI CPR detection failed: %v", err)
	}

	tc.sizeMu.RLock()
	nawsW, nawsH := tc.width, tc.height
	tc.sizeMu.RUnlock()

	if nawsW > 0 && nawsH > 0 && nawsW <= 80 && nawsH <= 25 {
		log.Printf("INFO: Telnet terminal size via NAWS: %dx%d", nawsW, nawsH)
		return nawsW, nawsH, "NAWS"
	}

	tc.sizeMu.Lock()
	tc.width = 80
	tc.height = 25
	tc.sizeMu.Unlock()

	log.Printf("INFO: Telnet terminal size using defaults: 80x25")
	return 80, 25, "DEFAULT"
}

// detectViaCursorPositioning uses ANSI escape sequences to detect actual usable
// terminal size. Moves cursor to far bottom-right (clamped by terminal), queries
// position, and parses the response. This detects status bars in SyncTerm etc.
func (tc *TelnetConn) detectViaCursorPositioning() (width, height int, err error) {
	defer func() {
		if r := recover(); r != nil {
			tc.writeMu.Lock()
			tc.conn.Write([]byte("\033[u"))
			tc.writeMu.Unlock()
		}
	}()

	query := []byte("\033[s\033[999;999H\033[6n")
	tc.writeMu.Lock()
	_, err = tc.conn.Write(query)
	tc.writeMu.Unlock()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to send CPR query: %w", err)
	}

	var allData []byte
	deadline := time.Now().Add(3 * time.Second)
	cprPattern := regexp.MustCompile(`\033\[(\d+);(\d+)R`)

	for time.Now().Before(deadline) {
		if tc.reader.Buffered() > 0 {
			buf := make([]byte, tc.reader.Buffered())
			n, readErr := tc.reader.Read(buf)
			if readErr == nil && n > 0 {
				allData = append(allData, buf[:n]...)
			}
		} else {
			tc.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			buf := make([]byte, 32)
			n, readErr := tc.reader.Read(buf)
			tc.conn.SetReadDeadline(time.Time{})

			if n > 0 {
				allData = append(allData, buf[:n]...)
			}

			if readErr != nil {
				if netErr, ok := readErr.(net.Error); ok && netErr.Timeout() {
					// Expected timeout, continue
				} else {
					break
				}
			}
		}

		if cprPattern.Match(allData) {
			break
		}

		time.Sleep(50 * time.Millisecond)
	}

	tc.writeMu.Lock()
	tc.conn.Write([]byte("\033[u"))
	tc.writeMu.Unlock()

	// Feed any telnet IAC commands mixed into the raw CPR response
	// through the stream so option state stays consistent; any
	// application bytes surfaced here are discarded.
	for _, b := range allData {
		if _, _, ferr := tc.stream.Feed(b); ferr != nil {
			break
		}
	}

	if len(allData) == 0 {
		return 0, 0, fmt.Errorf("no CPR response received")
	}

	matches := cprPattern.FindStringSubmatch(string(allData))
	if len(matches) != 3 {
		return 0, 0, fmt.Errorf("no valid CPR response found in %d bytes", len(allData))
	}

	var rows, cols int
	fmt.Sscanf(matches[1], "%d", &rows)
	fmt.Sscanf(matches[2], "%d", &cols)

	if cols > 80 {
		cols = 80
	}
	if rows > 25 {
		rows = 25
	}
	if cols < 20 {
		cols = 80
	}
	if rows < 10 {
		rows = 25
	}

	return cols, rows, nil
}
