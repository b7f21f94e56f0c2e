package telnet

import "testing"

func TestLinemode_DefaultIsRemoteLitEcho(t *testing.T) {
	lm := DefaultLinemode()
	if lm.Local() {
		t.Fatalf("expected default linemode to be remote")
	}
	if !lm.LitEcho() {
		t.Fatalf("expected default linemode to have lit_echo set")
	}
}

func TestLinemode_SetUnsetFlagRoundTrip(t *testing.T) {
	lm := NewLinemode(0)
	lm = lm.SetFlag(LMODE_MODE_TRAPSIG)
	if !lm.TrapSig() {
		t.Fatalf("expected trapsig after SetFlag")
	}
	lm = lm.UnsetFlag(LMODE_MODE_TRAPSIG)
	if lm.TrapSig() {
		t.Fatalf("expected trapsig cleared after UnsetFlag")
	}
}

func TestLinemode_StringRemote(t *testing.T) {
	lm := NewLinemode(0)
	if got := lm.String(); got != "remote" {
		t.Fatalf("String() = %q, want %q", got, "remote")
	}
}

func TestLinemode_StringLocalTrapsig(t *testing.T) {
	lm := NewLinemode(LMODE_MODE_LOCAL | LMODE_MODE_TRAPSIG)
	if got := lm.String(); got != "local|trapsig" {
		t.Fatalf("String() = %q, want %q", got, "local|trapsig")
	}
}
