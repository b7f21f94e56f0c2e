package telnet

// SLC function bytes, RFC 1184. NSLC is the highest assigned function.
const (
	SLC_SYNCH  byte = 1
	SLC_BRK    byte = 2
	SLC_IP     byte = 3
	SLC_AO     byte = 4
	SLC_AYT    byte = 5
	SLC_EOR    byte = 6
	SLC_ABORT  byte = 7
	SLC_EOF    byte = 8
	SLC_SUSP   byte = 9
	SLC_EC     byte = 10
	SLC_EL     byte = 11
	SLC_EW     byte = 12
	SLC_RP     byte = 13
	SLC_LNEXT  byte = 14
	SLC_XON    byte = 15
	SLC_XOFF   byte = 16
	SLC_FORW1  byte = 17
	SLC_FORW2  byte = 18
	SLC_MCL    byte = 19
	SLC_MCR    byte = 20
	SLC_MCWL   byte = 21
	SLC_MCWR   byte = 22
	SLC_MCBOL  byte = 23
	SLC_MCEOL  byte = 24
	SLC_INSRT  byte = 25
	SLC_OVER   byte = 26
	SLC_ECR    byte = 27
	SLC_EWR    byte = 28
	SLC_EBOL   byte = 29
	SLC_EEOL   byte = 30

	NSLC = 30
)

// SLC levels (the low bits of the flag byte).
const (
	SLC_NOSUPPORT  byte = 0
	SLC_CANTCHANGE byte = 1
	SLC_VARIABLE   byte = 2
	SLC_DEFAULT    byte = 3

	slcLevelMask byte = 0x03
)

// SLC flag bits, OR'd onto the level.
const (
	SLC_FLAG_ACK      byte = 128
	SLC_FLAG_FLUSHIN  byte = 64
	SLC_FLAG_FLUSHOUT byte = 32
)

// _POSIX_VDISABLE is the sentinel value byte meaning "disabled".
const posixVDisable byte = 0xFF

var slcFunctionNames = map[byte]string{
	SLC_SYNCH: "SLC_SYNCH", SLC_BRK: "SLC_BRK", SLC_IP: "SLC_IP",
	SLC_AO: "SLC_AO", SLC_AYT: "SLC_AYT", SLC_EOR: "SLC_EOR",
	SLC_ABORT: "SLC_ABORT", SLC_EOF: "SLC_EOF", SLC_SUSP: "SLC_SUSP",
	SLC_EC: "SLC_EC", SLC_EL: "SLC_EL", SLC_EW: "SLC_EW", SLC_RP: "SLC_RP",
	SLC_LNEXT: "SLC_LNEXT", SLC_XON: "SLC_XON", SLC_XOFF: "SLC_XOFF",
	SLC_FORW1: "SLC_FORW1", SLC_FORW2: "SLC_FORW2", SLC_MCL: "SLC_MCL",
	SLC_MCR: "SLC_MCR", SLC_MCWL: "SLC_MCWL", SLC_MCWR: "SLC_MCWR",
	SLC_MCBOL: "SLC_MCBOL", SLC_MCEOL: "SLC_MCEOL", SLC_INSRT: "SLC_INSRT",
	SLC_OVER: "SLC_OVER", SLC_ECR: "SLC_ECR", SLC_EWR: "SLC_EWR",
	SLC_EBOL: "SLC_EBOL", SLC_EEOL: "SLC_EEOL",
}

func nameSLCFunction(f byte) string {
	if name, ok := slcFunctionNames[f]; ok {
		return name
	}
	return byteLabel(f)
}

// SLCDefinition is a single SLC table entry: the support level plus any
// ACK/FLUSHIN/FLUSHOUT flags packed into Flag, and the triggering byte
// Value (posixVDisable when disabled).
type SLCDefinition struct {
	Flag  byte
	Value byte
}

// Level returns the support level, the low two bits of Flag.
func (d SLCDefinition) Level() byte { return d.Flag & slcLevelMask }

// Ack reports whether the ACK flag bit is set.
func (d SLCDefinition) Ack() bool { return d.Flag&SLC_FLAG_ACK != 0 }

// FlushIn reports whether the FLUSHIN flag bit is set.
func (d SLCDefinition) FlushIn() bool { return d.Flag&SLC_FLAG_FLUSHIN != 0 }

// FlushOut reports whether the FLUSHOUT flag bit is set.
func (d SLCDefinition) FlushOut() bool { return d.Flag&SLC_FLAG_FLUSHOUT != 0 }

// NoSupport reports whether the level is SLC_NOSUPPORT.
func (d SLCDefinition) NoSupport() bool { return d.Level() == SLC_NOSUPPORT }

func (d SLCDefinition) withFlag(flag byte) SLCDefinition {
	d.Flag |= flag
	return d
}

func (d SLCDefinition) withLevel(level byte) SLCDefinition {
	d.Flag = (d.Flag &^ slcLevelMask) | (level & slcLevelMask)
	return d
}

func (d SLCDefinition) withValue(v byte) SLCDefinition {
	d.Value = v
	return d
}

func slcNoSupport() SLCDefinition {
	return SLCDefinition{Flag: SLC_NOSUPPORT, Value: posixVDisable}
}

// SLCTab maps an SLC function byte (1..NSLC) to its definition. Every
// function in range always has an entry; unknown/unassigned functions
// default to SLC_NOSUPPORT with posixVDisable.
type SLCTab map[byte]SLCDefinition

// DefaultSLCTab returns the conventional BSD telnetd default bindings:
// VARIABLE support for the common interactive control characters, and
// SLC_NOSUPPORT for the multi-click/word-processing functions almost no
// client implements.
func DefaultSLCTab() SLCTab {
	tab := make(SLCTab, NSLC)
	set := func(f, level, value byte) {
		tab[f] = SLCDefinition{Flag: level, Value: value}
	}
	set(SLC_SYNCH, SLC_NOSUPPORT, posixVDisable)
	set(SLC_BRK, SLC_NOSUPPORT, posixVDisable)
	set(SLC_IP, SLC_VARIABLE, 0x03)   // ^C
	set(SLC_AO, SLC_VARIABLE, 0x0f)   // ^O
	set(SLC_AYT, SLC_VARIABLE, 0x14)  // ^T
	set(SLC_EOR, SLC_NOSUPPORT, posixVDisable)
	set(SLC_ABORT, SLC_VARIABLE|SLC_FLAG_FLUSHIN|SLC_FLAG_FLUSHOUT, 0x1c) // ^\
	set(SLC_EOF, SLC_VARIABLE, 0x04)                                     // ^D
	set(SLC_SUSP, SLC_VARIABLE|SLC_FLAG_FLUSHIN, 0x1a)                   // ^Z
	set(SLC_EC, SLC_VARIABLE, 0x7f)                                      // DEL
	set(SLC_EL, SLC_VARIABLE, 0x15)                                      // ^U
	set(SLC_EW, SLC_VARIABLE, 0x17)                                      // ^W
	set(SLC_RP, SLC_VARIABLE, 0x12)                                      // ^R
	set(SLC_LNEXT, SLC_VARIABLE, 0x16)                                   // ^V
	set(SLC_XON, SLC_VARIABLE, 0x11)                                     // ^Q
	set(SLC_XOFF, SLC_VARIABLE, 0x13)                                    // ^S
	for _, f := range []byte{
		SLC_FORW1, SLC_FORW2, SLC_MCL, SLC_MCR, SLC_MCWL, SLC_MCWR,
		SLC_MCBOL, SLC_MCEOL, SLC_INSRT, SLC_OVER, SLC_ECR, SLC_EWR,
		SLC_EBOL, SLC_EEOL,
	} {
		set(f, SLC_NOSUPPORT, posixVDisable)
	}
	return tab
}

// get returns the entry for f, or SLC_NOSUPPORT/posixVDisable for any
// function outside the default tabset.
func (t SLCTab) get(f byte) SLCDefinition {
	if d, ok := t[f]; ok {
		return d
	}
	return slcNoSupport()
}

// lookup reverse-searches the tabset for a supported entry bound to value,
// used by the SLC snoop to recognize an in-band byte as a special
// character the peer can't (or isn't) intercepting itself.
func (t SLCTab) lookup(value byte) (byte, SLCDefinition, bool) {
	for f := byte(1); f <= NSLC; f++ {
		d := t.get(f)
		if !d.NoSupport() && d.Value == value {
			return f, d, true
		}
	}
	return 0, SLCDefinition{}, false
}

// clone returns an independent copy of the tabset.
func (t SLCTab) clone() SLCTab {
	out := make(SLCTab, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
