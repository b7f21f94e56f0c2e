package telnet

// IACCallback handles a bare two-byte IAC command (GA, NOP, BRK, IP, AO,
// AYT, EC, EL, EOR, ...).
type IACCallback func(cmd byte)

// SLCCallback fires when a Special Line Character has been triggered,
// either because the peer sent its bound value in-band (simulated) or
// because the peer negotiated SLC support itself and notified us.
type SLCCallback func(fn byte, d SLCDefinition)

// ExtCallback handles a fully decoded extension sub-negotiation: NAWS
// column/row, TTYPE name, NEW_ENVIRON variables, and so on. The concrete
// value type varies by option: WindowSize for NAWS; string for TTYPE IS,
// XDISPLOC, SNDLOC and CHARSET; EnvRequest for a TTYPE or NEW_ENVIRON
// SEND; []EnvVar for NEW_ENVIRON IS/INFO; TSpeed for TSPEED; the mode
// byte for LFLOW; Linemode for LINEMODE MODE; the raw IS payload for
// STATUS; the received command byte for LOGOUT; and the raw buffer for
// any option without a built-in handler.
type ExtCallback func(opt byte, value any)

// callbackRegistry holds the three callback tables a StreamReader
// dispatches to: one per IAC command, one per SLC function, one per
// extension option. Registering a callback for a key that already has
// one replaces it; callbacks are never required, a missing entry is
// simply not invoked beyond the engine's own bookkeeping.
type callbackRegistry struct {
	iac map[byte]IACCallback
	slc map[byte]SLCCallback
	ext map[byte]ExtCallback
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{
		iac: map[byte]IACCallback{},
		slc: map[byte]SLCCallback{},
		ext: map[byte]ExtCallback{},
	}
}

// SetIACCallback registers fn to run whenever cmd is received as a bare
// IAC command.
func (s *StreamReader) SetIACCallback(cmd byte, fn IACCallback) {
	s.callbacks.iac[cmd] = fn
}

// SetSLCCallback registers fn to run whenever the SLC function fn fires.
func (s *StreamReader) SetSLCCallback(fn byte, cb SLCCallback) {
	s.callbacks.slc[fn] = cb
}

// SetExtCallback registers fn to run whenever opt's sub-negotiation has
// been fully decoded.
func (s *StreamReader) SetExtCallback(opt byte, cb ExtCallback) {
	s.callbacks.ext[opt] = cb
}

func (s *StreamReader) fireIAC(cmd byte) {
	if cb, ok := s.callbacks.iac[cmd]; ok {
		cb(cmd)
		return
	}
	s.log.Debugf("unhandled IAC %s", nameCommand(cmd))
}

func (s *StreamReader) fireSLC(fn byte, d SLCDefinition) {
	if cb, ok := s.callbacks.slc[fn]; ok {
		cb(fn, d)
	}
}

func (s *StreamReader) fireExt(opt byte, value any) {
	if cb, ok := s.callbacks.ext[opt]; ok {
		cb(opt, value)
	}
}
