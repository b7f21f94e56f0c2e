package telnetserver

import (
	"net"
	"testing"

	"github.com/stlalpha/vision3-telnet/internal/telnet"
)

func newTestTelnetConn(t *testing.T) (*TelnetConn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	tc := NewTelnetConn(server)
	t.Cleanup(func() {
		tc.Close()
		client.Close()
	})
	return tc, client
}

func TestTelnetConn_NAWSUpdatesWindowSize(t *testing.T) {
	tc, _ := newTestTelnetConn(t)

	for _, b := range []byte{telnet.IAC, telnet.SB, telnet.NAWS, 0, 100, 0, 40, telnet.IAC, telnet.SE} {
		tc.stream.Feed(b)
	}

	w, h := tc.WindowSize()
	if w != 80 {
		t.Fatalf("expected width capped at 80, got %d", w)
	}
	if h != 25 {
		t.Fatalf("expected height capped at 25, got %d", h)
	}

	select {
	case win := <-tc.winCh:
		if win.Width != 80 || win.Height != 25 {
			t.Fatalf("unexpected window on winCh: %+v", win)
		}
	default:
		t.Fatalf("expected a window update on winCh")
	}
}

func TestTelnetConn_TTYPEUpdatesTermType(t *testing.T) {
	tc, _ := newTestTelnetConn(t)

	buf := []byte{telnet.IAC, telnet.SB, telnet.TTYPE, telnet.IS}
	buf = append(buf, []byte("ANSI-BBS")...)
	buf = append(buf, telnet.IAC, telnet.SE)
	for _, b := range buf {
		tc.stream.Feed(b)
	}

	if got := tc.TermType(); got != "ansi-bbs" {
		t.Fatalf("TermType() = %q, want %q", got, "ansi-bbs")
	}
}

func TestTelnetConn_TermTypeDefaultsToAnsi(t *testing.T) {
	tc, _ := newTestTelnetConn(t)
	if got := tc.TermType(); got != "ansi" {
		t.Fatalf("TermType() = %q, want %q", got, "ansi")
	}
}
