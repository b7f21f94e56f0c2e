package telnet

import (
	"bytes"
	"errors"
	"testing"
)

func newTestStream(role Role) (*StreamReader, *bufTransport) {
	tr := &bufTransport{}
	s := NewStreamReader(role, tr, DefaultConfig(), nopLogger{})
	return s, tr
}

func TestFeed_PlainDataPassesThrough(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	out := feedAll(s, []byte("hello"))
	if string(out) != "hello" {
		t.Fatalf("got %q, want %q", out, "hello")
	}
}

func TestFeed_EscapedIACYieldsSingleByte(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	out := feedAll(s, []byte{'a', IAC, IAC, 'b'})
	want := []byte{'a', IAC, 'b'}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestFeed_WillKnownOptionIsAcceptedWithDo(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	feedAll(s, []byte{IAC, WILL, NAWS})
	want := []byte{IAC, DO, NAWS}
	if !bytes.Equal(tr.buf.Bytes(), want) {
		t.Fatalf("got %v, want %v", tr.buf.Bytes(), want)
	}
	if !s.remoteOption.enabled(optKey(NAWS)) {
		t.Fatalf("expected NAWS to be recorded as a remote option")
	}
}

func TestFeed_WillUnknownOptionIsRefusedWithDont(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	feedAll(s, []byte{IAC, WILL, 0x7a})
	want := []byte{IAC, DONT, 0x7a}
	if !bytes.Equal(tr.buf.Bytes(), want) {
		t.Fatalf("got %v, want %v", tr.buf.Bytes(), want)
	}
}

func TestFeed_WillInResponseToOurDoDoesNotReNegotiate(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	s.RequestDo(SGA)
	tr.buf.Reset()
	feedAll(s, []byte{IAC, WILL, SGA})
	if tr.buf.Len() != 0 {
		t.Fatalf("expected no reply to an answer for our own request, got %v", tr.buf.Bytes())
	}
	if !s.remoteOption.enabled(optKey(SGA)) {
		t.Fatalf("expected SGA to be enabled remotely")
	}
}

func TestFeed_NAWSSubnegotiationFiresCallback(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	var got WindowSize
	s.SetExtCallback(NAWS, func(opt byte, v any) { got = v.(WindowSize) })
	feedAll(s, []byte{IAC, SB, NAWS, 0, 80, 0, 24, IAC, SE})
	if got.Cols != 80 || got.Rows != 24 {
		t.Fatalf("got %+v, want Cols=80 Rows=24", got)
	}
}

func TestFeed_TTYPESubnegotiationFiresCallback(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	var got string
	s.SetExtCallback(TTYPE, func(opt byte, v any) { got = v.(string) })
	buf := append([]byte{IAC, SB, TTYPE, IS}, []byte("ANSI")...)
	buf = append(buf, IAC, SE)
	feedAll(s, buf)
	if got != "ANSI" {
		t.Fatalf("got %q, want %q", got, "ANSI")
	}
	if s.TermType() != "ANSI" {
		t.Fatalf("TermType() = %q, want %q", s.TermType(), "ANSI")
	}
}

func TestFeed_NewEnvironIS(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	var got []EnvVar
	s.SetExtCallback(NEW_ENVIRON, func(opt byte, v any) { got = v.([]EnvVar) })

	body := []byte{IS, ENV_VAR}
	body = append(body, []byte("USER")...)
	body = append(body, ENV_VALUE)
	body = append(body, []byte("alice")...)
	body = append(body, ENV_USERVAR)
	body = append(body, []byte("SHELL")...)
	body = append(body, ENV_VALUE)
	body = append(body, []byte("/bin/sh")...)

	buf := append([]byte{IAC, SB, NEW_ENVIRON}, body...)
	buf = append(buf, IAC, SE)
	feedAll(s, buf)

	if len(got) != 2 {
		t.Fatalf("expected 2 vars, got %d: %+v", len(got), got)
	}
	if got[0].Name != "USER" || got[0].Value != "alice" || got[0].User {
		t.Fatalf("unexpected first var: %+v", got[0])
	}
	if got[1].Name != "SHELL" || got[1].Value != "/bin/sh" || !got[1].User {
		t.Fatalf("unexpected second var: %+v", got[1])
	}
}

func TestFeed_NewEnvironEscapedDelimiterInValue(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	var got []EnvVar
	s.SetExtCallback(NEW_ENVIRON, func(opt byte, v any) { got = v.([]EnvVar) })

	// A value containing a literal VALUE byte, escaped.
	body := []byte{IS, ENV_VAR}
	body = append(body, []byte("X")...)
	body = append(body, ENV_VALUE)
	body = append(body, 'a', ENV_ESC, ENV_VALUE, 'b')

	buf := append([]byte{IAC, SB, NEW_ENVIRON}, body...)
	buf = append(buf, IAC, SE)
	feedAll(s, buf)

	if len(got) != 1 {
		t.Fatalf("expected 1 var, got %d: %+v", len(got), got)
	}
	want := "a" + string(ENV_VALUE) + "b"
	if got[0].Value != want {
		t.Fatalf("got value %q, want %q", got[0].Value, want)
	}
}

func TestRequestOption_RefusesDuplicateWhilePending(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	if !s.RequestDo(NAWS) {
		t.Fatalf("expected first RequestDo to succeed")
	}
	tr.buf.Reset()
	if s.RequestDo(NAWS) {
		t.Fatalf("expected second RequestDo to be refused while pending")
	}
	if tr.buf.Len() != 0 {
		t.Fatalf("expected no duplicate wire traffic, got %v", tr.buf.Bytes())
	}
}

func TestSendStatus_ReportsOptionsInFirstTouchedOrder(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	feedAll(s, []byte{IAC, WILL, SGA})
	feedAll(s, []byte{IAC, WILL, NAWS})
	tr.buf.Reset()
	s.sendStatus()

	out := tr.buf.Bytes()
	if len(out) < 3 || out[0] != IAC || out[1] != SB || out[2] != STATUS {
		t.Fatalf("expected IAC SB STATUS prefix, got %v", out)
	}
	sgaIdx := bytes.IndexByte(out, SGA)
	nawsIdx := bytes.IndexByte(out, NAWS)
	if sgaIdx == -1 || nawsIdx == -1 || sgaIdx > nawsIdx {
		t.Fatalf("expected SGA to be reported before NAWS, got %v", out)
	}
}

func TestReconcileSLC_AcceptsNewInterruptValue(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	var fired SLCDefinition
	s.SetSLCCallback(SLC_IP, func(fn byte, d SLCDefinition) { fired = d })

	triplet := []byte{SLC_IP, SLC_VARIABLE, 0x1b}
	buf := append([]byte{IAC, SB, LINEMODE, LMODE_SLC}, triplet...)
	buf = append(buf, IAC, SE)
	feedAll(s, buf)

	if fired.Value != 0x1b {
		t.Fatalf("expected SLC_IP callback value 0x1b, got %#x", fired.Value)
	}
	if !s.SLCReceived() {
		t.Fatalf("expected SLCReceived to be true")
	}
	if tr.buf.Len() == 0 {
		t.Fatalf("expected an acknowledgement to be sent")
	}
}

func TestFeed_DoTMRepliesWillImmediately(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	feedAll(s, []byte{IAC, DO, TM})
	want := []byte{IAC, WILL, TM}
	if !bytes.Equal(tr.buf.Bytes(), want) {
		t.Fatalf("got %v, want %v", tr.buf.Bytes(), want)
	}
}

func TestFeed_PendingTMDiscardsDataUntilReply(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	if !s.RequestDo(TM) {
		t.Fatalf("expected RequestDo(TM) to send")
	}

	out := feedAll(s, []byte{'A', 'B', 'C'})
	if len(out) != 0 {
		t.Fatalf("expected data bytes to be discarded while TM is pending, got %v", out)
	}

	out = feedAll(s, []byte{IAC, WILL, TM})
	if len(out) != 0 {
		t.Fatalf("expected no application data from the WILL TM reply itself")
	}
	if s.pendingOption.enabled(cmdKey(DO, TM)) {
		t.Fatalf("expected pending[DO,TM] to be cleared by WILL TM")
	}

	out = feedAll(s, []byte{'D'})
	if string(out) != "D" {
		t.Fatalf("expected data to pass through once TM pending clears, got %v", out)
	}
}

func TestFeed_DoEchoIllegalOnClient(t *testing.T) {
	s, tr := newTestStream(RoleClient)
	feedAll(s, []byte{IAC, DO, ECHO})
	if tr.buf.Len() != 0 {
		t.Fatalf("expected no reply to an illegal DO ECHO on a client, got %v", tr.buf.Bytes())
	}
	if s.localOption.enabled(optKey(ECHO)) {
		t.Fatalf("expected ECHO to stay disabled")
	}
}

func TestFeed_WillEchoIllegalOnServer(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	feedAll(s, []byte{IAC, WILL, ECHO})
	if tr.buf.Len() != 0 {
		t.Fatalf("expected no reply to an illegal WILL ECHO on a server, got %v", tr.buf.Bytes())
	}
	if s.remoteOption.enabled(optKey(ECHO)) {
		t.Fatalf("expected ECHO to stay disabled remotely")
	}
}

func TestFeed_WillNAWSIllegalOnClient(t *testing.T) {
	s, tr := newTestStream(RoleClient)
	feedAll(s, []byte{IAC, WILL, NAWS})
	if tr.buf.Len() != 0 {
		t.Fatalf("expected no reply to an illegal WILL NAWS on a client, got %v", tr.buf.Bytes())
	}
}

func TestFeed_DoLinemodeIllegalOnServer(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	feedAll(s, []byte{IAC, DO, LINEMODE})
	if tr.buf.Len() != 0 {
		t.Fatalf("expected no reply to an illegal DO LINEMODE on a server, got %v", tr.buf.Bytes())
	}
}

func TestFeed_LogoutDoOnServerFiresExtCallback(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	var got byte
	fired := false
	s.SetExtCallback(LOGOUT, func(opt byte, v any) { fired = true; got = v.(byte) })
	feedAll(s, []byte{IAC, DO, LOGOUT})
	if !fired || got != DO {
		t.Fatalf("expected LOGOUT ext callback fired with DO, got fired=%v value=%v", fired, got)
	}
}

func TestFeed_LogoutWillOnClientFiresExtCallback(t *testing.T) {
	s, _ := newTestStream(RoleClient)
	var got byte
	fired := false
	s.SetExtCallback(LOGOUT, func(opt byte, v any) { fired = true; got = v.(byte) })
	feedAll(s, []byte{IAC, WILL, LOGOUT})
	if !fired || got != WILL {
		t.Fatalf("expected LOGOUT ext callback fired with WILL, got fired=%v value=%v", fired, got)
	}
}

func TestRequestTTYPE_RefusesDuplicateWhilePending(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	// Accepting WILL TTYPE sends the first IAC SB TTYPE SEND on its own.
	feedAll(s, []byte{IAC, WILL, TTYPE})
	first := []byte{IAC, DO, TTYPE, IAC, SB, TTYPE, SEND, IAC, SE}
	if !bytes.Equal(tr.buf.Bytes(), first) {
		t.Fatalf("expected DO TTYPE and the first TTYPE SEND, got %v", tr.buf.Bytes())
	}
	tr.buf.Reset()

	if s.RequestTTYPE() {
		t.Fatalf("expected second RequestTTYPE to be refused while pending")
	}
	if tr.buf.Len() != 0 {
		t.Fatalf("expected no duplicate wire traffic, got %v", tr.buf.Bytes())
	}

	// The peer's IS reply clears the pending flag, so a subsequent
	// RequestTTYPE is allowed to send again.
	buf := append([]byte{IAC, SB, TTYPE, IS}, []byte("ANSI")...)
	buf = append(buf, IAC, SE)
	feedAll(s, buf)

	if !s.RequestTTYPE() {
		t.Fatalf("expected RequestTTYPE to send again after the IS reply cleared pending")
	}
}

func TestFeed_WillStatusAutoRequestsStatus(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	feedAll(s, []byte{IAC, WILL, STATUS})
	out := tr.buf.Bytes()
	want := []byte{IAC, DO, STATUS, IAC, SB, STATUS, SEND, IAC, SE}
	if !bytes.Equal(out, want) {
		t.Fatalf("expected IAC DO STATUS then an automatic IAC SB STATUS SEND, got %v", out)
	}
}

func TestFeed_SLCSnoopFiresOnBoundByte(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	var fired byte
	s.SetSLCCallback(SLC_IP, func(fn byte, d SLCDefinition) { fired = fn })

	ip := s.slcTab.get(SLC_IP)
	feedAll(s, []byte{ip.Value})

	if fired != SLC_IP {
		t.Fatalf("expected SLC_IP to fire on its bound byte, got %v", fired)
	}
}

func TestFeed_XoffPausesTransportAndXonResumes(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	xoff := s.slcTab.get(SLC_XOFF).Value
	xon := s.slcTab.get(SLC_XON).Value

	feedAll(s, []byte{xoff})
	if !tr.paused {
		t.Fatalf("expected transport to be paused after the bound XOFF byte")
	}

	feedAll(s, []byte{xon})
	if tr.paused {
		t.Fatalf("expected transport to resume after the bound XON byte")
	}
}

func TestFeed_XonAnyResumesOnAnyByteWhilePaused(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	s.config.XonAny = true
	xoff := s.slcTab.get(SLC_XOFF).Value

	feedAll(s, []byte{xoff})
	if !tr.paused {
		t.Fatalf("expected transport to be paused after XOFF")
	}

	feedAll(s, []byte{'Q'})
	if tr.paused {
		t.Fatalf("expected any byte to resume a paused transport under xon_any")
	}
}

func TestReconcileSLC_OutOfRangeFunctionIsRefused(t *testing.T) {
	s, _ := newTestStream(RoleServer)
	before := s.slcTab.clone()

	triplet := []byte{NSLC + 1, SLC_VARIABLE, 0x01}
	buf := append([]byte{IAC, SB, LINEMODE, LMODE_SLC}, triplet...)
	buf = append(buf, IAC, SE)
	feedAll(s, buf)

	for fn, d := range before {
		if s.slcTab[fn] != d {
			t.Fatalf("expected table entry for %d to be untouched by an out-of-range function", fn)
		}
	}
}

func TestReconcileSLC_FuncZeroDefaultTransmitsFullTabset(t *testing.T) {
	s, tr := newTestStream(RoleServer)
	triplet := []byte{0, SLC_DEFAULT, 0}
	buf := append([]byte{IAC, SB, LINEMODE, LMODE_SLC}, triplet...)
	buf = append(buf, IAC, SE)
	feedAll(s, buf)

	out := tr.buf.Bytes()
	if len(out) < 4 || out[0] != IAC || out[1] != SB || out[2] != LINEMODE || out[3] != LMODE_SLC {
		t.Fatalf("expected an IAC SB LINEMODE SLC reply carrying the tabset, got %v", out)
	}
	if bytes.IndexByte(out, SLC_IP) == -1 {
		t.Fatalf("expected the dumped tabset to include SLC_IP, got %v", out)
	}
}

func TestFeed_SubnegotiationOverflowIsFatal(t *testing.T) {
	s, _ := newTestStream(RoleServer)

	buf := []byte{IAC, SB, NAWS}
	for i := 0; i < SB_MAXSIZE+1; i++ {
		buf = append(buf, 'x')
	}
	buf = append(buf, IAC, SE)

	var lastErr error
	for _, b := range buf {
		_, _, err := s.Feed(b)
		if err != nil {
			lastErr = err
			break
		}
	}

	if lastErr == nil {
		t.Fatalf("expected an overflow error")
	}
	if !errors.Is(lastErr, ErrBufferOverflow) {
		t.Fatalf("expected ErrBufferOverflow, got %v", lastErr)
	}
	if !errors.Is(s.Err(), ErrBufferOverflow) {
		t.Fatalf("expected Err() to stick, got %v", s.Err())
	}

	_, _, err := s.Feed('y')
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("expected subsequent Feed calls to keep returning the error, got %v", err)
	}
}
