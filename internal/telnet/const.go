// Package telnet implements the core of a Telnet protocol engine: the
// byte-feed interpreter, bilateral option negotiation, sub-negotiation
// parsing, and LINEMODE/SLC processing described by RFCs 854, 855, 857,
// 858, 859, 860, 861, 885, 930, 1073, 1079, 1091, 1184, 1372, 1408, 1572,
// 2066 and 779.
//
// The underlying byte transport, the surrounding session runtime, and
// application-layer shells are external collaborators; this package only
// defines the contracts with them (see Transport and the callback
// registries in callbacks.go).
package telnet

// IAC commands, RFC 854.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Sub-negotiation Begin
	GA   byte = 249 // Go Ahead
	EL   byte = 248 // Erase Line
	EC   byte = 247 // Erase Character
	AYT  byte = 246 // Are You There
	AO   byte = 245 // Abort Output
	IP   byte = 244 // Interrupt Process
	BRK  byte = 243 // Break
	DM   byte = 242 // Data Mark
	NOP  byte = 241
	SE   byte = 240 // Sub-negotiation End

	EOF     byte = 236 // RFC 1184
	SUSP    byte = 237 // RFC 1184
	ABORT   byte = 238 // RFC 1184
	EOR_CMD byte = 239 // RFC 885
)

// Option bytes.
const (
	BINARY      byte = 0
	ECHO        byte = 1
	SGA         byte = 3
	STATUS      byte = 5
	TM          byte = 6
	SNDLOC      byte = 23 // RFC 779
	TTYPE       byte = 24 // RFC 1091
	EOR         byte = 25 // RFC 885
	NAWS        byte = 31 // RFC 1073
	TSPEED      byte = 32 // RFC 1079
	LFLOW       byte = 33 // RFC 1372
	LINEMODE    byte = 34 // RFC 1184
	XDISPLOC    byte = 35 // RFC 1096
	LOGOUT      byte = 18 // RFC 727
	NEW_ENVIRON byte = 39 // RFC 1572
	CHARSET     byte = 42 // RFC 2066
	EXOPL       byte = 255
)

// Sub-negotiation literals.
const (
	IS   byte = 0
	SEND byte = 1
	INFO byte = 2
)

// NEW_ENVIRON field types, RFC 1572.
const (
	ENV_VAR     byte = 0
	ENV_VALUE   byte = 1
	ENV_ESC     byte = 2
	ENV_USERVAR byte = 3
)

// LFLOW sub-negotiation modes, RFC 1372.
const (
	LFLOW_OFF         byte = 0
	LFLOW_ON          byte = 1
	LFLOW_RESTART_ANY byte = 2
	LFLOW_RESTART_XON byte = 3
)

// CHARSET sub-negotiation commands, RFC 2066.
const (
	CHARSET_REQUEST         byte = 1
	CHARSET_ACCEPTED        byte = 2
	CHARSET_REJECTED        byte = 3
	CHARSET_TTABLE_IS       byte = 4
	CHARSET_TTABLE_REJECTED byte = 5
	CHARSET_TTABLE_ACK      byte = 6
	CHARSET_TTABLE_NAK      byte = 7
)

// LINEMODE sub-negotiation commands, RFC 1184.
const (
	LMODE_MODE        byte = 1
	LMODE_FORWARDMASK byte = 2
	LMODE_SLC         byte = 3
)

// Linemode mode-mask bit positions.
const (
	LMODE_MODE_REMOTE   byte = 0 // conceptual: encoded by absence of LOCAL
	LMODE_MODE_LOCAL    byte = 1
	LMODE_MODE_TRAPSIG  byte = 2
	LMODE_MODE_ACK      byte = 4
	LMODE_MODE_SOFT_TAB byte = 8
	LMODE_MODE_LIT_ECHO byte = 16
)

// SB_MAXSIZE is the maximum size of the sub-negotiation buffer before a
// peer is considered hostile or broken.
const SB_MAXSIZE = 2048

// theNULL is the zero byte (NUL). No code in this package refers to it.
const theNULL byte = 0

// nameCommand returns the mnemonic for a well-known IAC/option byte, or a
// numeric fallback, for log messages. Mirrors the source's _name_command.
func nameCommand(b byte) string {
	if name, ok := commandNames[b]; ok {
		return name
	}
	return byteLabel(b)
}

func byteLabel(b byte) string {
	const hex = "0123456789abcdef"
	return "0x" + string([]byte{hex[b>>4], hex[b&0xf]})
}

var commandNames = map[byte]string{
	IAC: "IAC", DONT: "DONT", DO: "DO", WONT: "WONT", WILL: "WILL",
	SB: "SB", GA: "GA", EL: "EL", EC: "EC", AYT: "AYT", AO: "AO", IP: "IP",
	BRK: "BRK", DM: "DM", NOP: "NOP", SE: "SE",
	EOF: "EOF", SUSP: "SUSP", ABORT: "ABORT", EOR_CMD: "EOR_CMD",
	BINARY: "BINARY", ECHO: "ECHO", SGA: "SGA", STATUS: "STATUS", TM: "TM",
	SNDLOC: "SNDLOC", TTYPE: "TTYPE", EOR: "EOR", NAWS: "NAWS",
	TSPEED: "TSPEED", LFLOW: "LFLOW", LINEMODE: "LINEMODE",
	XDISPLOC: "XDISPLOC", LOGOUT: "LOGOUT", NEW_ENVIRON: "NEW-ENVIRON",
	CHARSET: "CHARSET",
}
