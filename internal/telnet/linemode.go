package telnet

import "strings"

// Linemode is a one-byte bitmask describing how the LINEMODE option
// (RFC 1184) has been negotiated: whether line editing happens on the
// client (local) or server (remote) end, whether signals are trapped,
// and a couple of display/formatting flags.
type Linemode struct {
	mask byte
}

// DefaultLinemode is what a server proposes by default: remote editing
// (server-side) with literal display of control characters.
func DefaultLinemode() Linemode {
	return Linemode{mask: LMODE_MODE_REMOTE | LMODE_MODE_LIT_ECHO}
}

// NewLinemode wraps a raw mask byte. A mask without LMODE_MODE_LOCAL,
// including zero, means remote (server-side) editing.
func NewLinemode(mask byte) Linemode {
	return Linemode{mask: mask}
}

// Mask returns the raw bitmask byte.
func (l Linemode) Mask() byte { return l.mask }

// SetFlag returns a copy of l with flag set.
func (l Linemode) SetFlag(flag byte) Linemode {
	return Linemode{mask: l.mask | flag}
}

// UnsetFlag returns a copy of l with flag cleared.
func (l Linemode) UnsetFlag(flag byte) Linemode {
	return Linemode{mask: l.mask &^ flag}
}

// Local is true when line editing is performed on the client side: the
// client buffers and edits a full line before sending it.
func (l Linemode) Local() bool {
	return l.mask&LMODE_MODE_LOCAL != 0
}

// Remote is true when line editing is performed on the server side.
func (l Linemode) Remote() bool {
	return !l.Local()
}

// TrapSig is true if the client translates interrupts/signals (IP, BRK,
// AYT, ABORT, EOF, SUSP) to their Telnet equivalents instead of passing
// raw ASCII control bytes.
func (l Linemode) TrapSig() bool {
	return l.mask&LMODE_MODE_TRAPSIG != 0
}

// Ack reports whether the acknowledgement bit is set.
func (l Linemode) Ack() bool {
	return l.mask&LMODE_MODE_ACK != 0
}

// SoftTab is true when the client expands horizontal tab into spaces
// rather than passing it through unmodified.
func (l Linemode) SoftTab() bool {
	return l.mask&LMODE_MODE_SOFT_TAB != 0
}

// LitEcho is true when non-printable characters are echoed literally
// rather than transposed (e.g. as "^C").
func (l Linemode) LitEcho() bool {
	return l.mask&LMODE_MODE_LIT_ECHO != 0
}

// String renders the linemode for debug logging, e.g. "remote|lit_echo".
func (l Linemode) String() string {
	if l.mask == 0 {
		return "remote"
	}
	var flags []string
	if l.Local() {
		flags = append(flags, "local")
	} else {
		flags = append(flags, "remote")
	}
	if l.TrapSig() {
		flags = append(flags, "trapsig")
	}
	if l.SoftTab() {
		flags = append(flags, "soft_tab")
	}
	if l.LitEcho() {
		flags = append(flags, "lit_echo")
	}
	if l.Ack() {
		flags = append(flags, "ack")
	}
	return strings.Join(flags, "|")
}
