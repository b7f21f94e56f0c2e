package telnet

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// Role distinguishes which side of the connection a StreamReader plays,
// since several negotiation policies (who initiates TTYPE, who proposes
// LINEMODE's default mode) are role-specific.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

type feedState int

const (
	stData feedState = iota
	stIAC
	stWill
	stWont
	stDo
	stDont
	stSB
	stSBIAC
)

// WindowSize is the decoded payload of a NAWS sub-negotiation.
type WindowSize struct {
	Cols uint16
	Rows uint16
}

// TSpeed is the decoded payload of a TSPEED sub-negotiation.
type TSpeed struct {
	Send    int
	Receive int
}

// EnvVar is one decoded NEW_ENVIRON variable, either a well-known VAR or a
// client-defined USERVAR.
type EnvVar struct {
	Name  string
	Value string
	User  bool
}

// EnvRequest is fired when a peer asks us (via IAC SB NEW_ENVIRON SEND) to
// report our environment. Names is empty when the peer asked for
// everything.
type EnvRequest struct {
	Names []string
}

var oobCommands = map[byte]bool{
	IP: true, AO: true, AYT: true, BRK: true, EC: true, EL: true,
	ABORT: true, SUSP: true, EOF: true,
}

var knownOptions = map[byte]bool{
	BINARY: true, ECHO: true, SGA: true, STATUS: true, TTYPE: true,
	EOR: true, NAWS: true, TSPEED: true, LFLOW: true, LINEMODE: true,
	XDISPLOC: true, NEW_ENVIRON: true, CHARSET: true, SNDLOC: true,
}

// StreamReader is the core Telnet byte-feed interpreter. It consumes one
// byte at a time via Feed, maintains the three option tables (local,
// remote, pending), drives LINEMODE/SLC reconciliation, and writes
// negotiation replies and sub-negotiations back out through a Transport.
// It performs no I/O of its own and holds no locks: the caller is
// responsible for feeding bytes from a single goroutine at a time.
type StreamReader struct {
	role      Role
	config    Config
	transport Transport
	log       Logger

	localOption   *optionTable
	remoteOption  *optionTable
	pendingOption *optionTable

	slcTab             SLCTab
	linemodeVal        Linemode
	linemodeNegotiated bool
	slcReceivedFlag    bool
	paused             bool

	state     feedState
	sbOpt     byte
	sbHaveOpt bool
	sbBuf     []byte
	err       error

	byteCount        int64
	iacReceivedCount int64
	cmdReceived      map[byte]int64

	termType string
	charset  string

	callbacks *callbackRegistry
}

// NewStreamReader constructs a StreamReader bound to transport, acting in
// the given role. A nil Logger falls back to a no-op implementation.
func NewStreamReader(role Role, transport Transport, cfg Config, log Logger) *StreamReader {
	if log == nil {
		log = nopLogger{}
	}
	return &StreamReader{
		role:          role,
		config:        cfg,
		transport:     transport,
		log:           log,
		localOption:   newOptionTable("local_option", log),
		remoteOption:  newOptionTable("remote_option", log),
		pendingOption: newOptionTable("pending_option", log),
		slcTab:        cfg.slcTab(),
		linemodeVal:   cfg.DefaultLinemode,
		cmdReceived:   map[byte]int64{},
		callbacks:     newCallbackRegistry(),
	}
}

// IsServer reports whether this StreamReader plays the server role.
func (s *StreamReader) IsServer() bool { return s.role == RoleServer }

// IsClient reports whether this StreamReader plays the client role.
func (s *StreamReader) IsClient() bool { return s.role == RoleClient }

// IsLinemode reports whether LINEMODE has been enabled in either
// direction.
func (s *StreamReader) IsLinemode() bool {
	return s.localOption.enabled(optKey(LINEMODE)) || s.remoteOption.enabled(optKey(LINEMODE))
}

// Linemode returns the last negotiated linemode bitmask.
func (s *StreamReader) Linemode() Linemode { return s.linemodeVal }

// IsOOB reports whether cmd is conventionally delivered out-of-band
// (interrupt/abort-style commands), for callers bridging to a transport
// that honors TCP urgent data.
func (s *StreamReader) IsOOB(cmd byte) bool { return oobCommands[cmd] }

// SLCReceived reports whether the peer has sent at least one LINEMODE SLC
// sub-negotiation.
func (s *StreamReader) SLCReceived() bool { return s.slcReceivedFlag }

// IACReceived returns the total count of IAC sequences received.
func (s *StreamReader) IACReceived() int64 { return s.iacReceivedCount }

// CmdReceived returns how many times the bare IAC command cmd has been
// received.
func (s *StreamReader) CmdReceived(cmd byte) int64 { return s.cmdReceived[cmd] }

// ByteCount returns the total count of bytes fed so far.
func (s *StreamReader) ByteCount() int64 { return s.byteCount }

// Err returns the sticky error that stopped Feed from processing any
// further bytes, or nil if the stream hasn't hit a fatal condition.
func (s *StreamReader) Err() error { return s.err }

// TermType returns the last TTYPE value reported by the peer.
func (s *StreamReader) TermType() string { return s.termType }

// Charset returns the last CHARSET value agreed with the peer.
func (s *StreamReader) Charset() string { return s.charset }

// Feed consumes one byte of the incoming stream. When ok is true, out is
// application data the caller should append to its inbound buffer;
// otherwise b was consumed by protocol negotiation and produces no
// application-visible output of its own.
//
// A non-nil err means the peer overran the sub-negotiation buffer
// (SB_MAXSIZE); this is a fatal protocol violation and the caller must
// stop feeding bytes and drop the connection. Every call after the first
// error returns the same error immediately.
func (s *StreamReader) Feed(b byte) (out byte, ok bool, err error) {
	if s.err != nil {
		return 0, false, s.err
	}
	s.byteCount++
	switch s.state {
	case stData:
		if b == IAC {
			s.state = stIAC
			return 0, false, nil
		}
		if s.pendingOption.enabled(cmdKey(DO, TM)) {
			s.log.Debugf("discarding %s: TM reply still pending", byteLabel(b))
			return 0, false, nil
		}
		if s.paused && s.config.XonAny {
			s.resumeTransport()
			s.fireSLC(SLC_XON, s.slcTab.get(SLC_XON))
		}
		if s.slcSnoopActive() {
			if fn, d, matched := s.slcTab.lookup(b); matched {
				switch fn {
				case SLC_XOFF:
					s.pauseTransport()
				case SLC_XON:
					s.resumeTransport()
				}
				s.fireSLC(fn, d)
			}
		}
		return b, true, nil

	case stIAC:
		s.iacReceivedCount++
		switch b {
		case IAC:
			s.state = stData
			return IAC, true, nil
		case WILL:
			s.state = stWill
		case WONT:
			s.state = stWont
		case DO:
			s.state = stDo
		case DONT:
			s.state = stDont
		case SB:
			s.state = stSB
			s.sbBuf = s.sbBuf[:0]
			s.sbHaveOpt = false
		default:
			s.state = stData
			s.handleCommand(b)
		}
		return 0, false, nil

	case stWill:
		s.state = stData
		s.handleWill(b)
		return 0, false, nil

	case stWont:
		s.state = stData
		s.handleWont(b)
		return 0, false, nil

	case stDo:
		s.state = stData
		s.handleDo(b)
		return 0, false, nil

	case stDont:
		s.state = stData
		s.handleDont(b)
		return 0, false, nil

	case stSB:
		if b == IAC {
			s.state = stSBIAC
			return 0, false, nil
		}
		if err := s.appendSB(b); err != nil {
			s.err = err
			return 0, false, err
		}
		return 0, false, nil

	case stSBIAC:
		switch b {
		case SE:
			s.state = stData
			opt, buf := s.sbOpt, s.sbBuf
			s.sbBuf = nil
			s.handleSubnegotiation(opt, buf)
		case IAC:
			s.state = stSB
			if err := s.appendSB(IAC); err != nil {
				s.err = err
				return 0, false, err
			}
		default:
			// malformed: peer sent IAC <not IAC, not SE> inside a
			// sub-negotiation. Abort the sub-negotiation; this byte is
			// dropped and the next one is read as data.
			s.state = stData
			s.log.Warnf("SB %s: malformed IAC escape, aborting", nameCommand(s.sbOpt))
		}
		return 0, false, nil
	}
	return 0, false, nil
}

func (s *StreamReader) appendSB(b byte) error {
	if !s.sbHaveOpt {
		s.sbOpt = b
		s.sbHaveOpt = true
		return nil
	}
	if len(s.sbBuf) >= SB_MAXSIZE {
		s.log.Errorf("SB %s: sub-negotiation buffer exceeds %d bytes, dropping connection", nameCommand(s.sbOpt), SB_MAXSIZE)
		return fmt.Errorf("%s sub-negotiation: %w", nameCommand(s.sbOpt), ErrBufferOverflow)
	}
	s.sbBuf = append(s.sbBuf, b)
	return nil
}

func (s *StreamReader) handleCommand(cmd byte) {
	s.cmdReceived[cmd]++
	s.log.Debugf("recv IAC %s", nameCommand(cmd))
	s.fireIAC(cmd)
}

// --- negotiation ---------------------------------------------------------

func (s *StreamReader) acceptOption(opt byte) bool { return knownOptions[opt] }

// slcSnoopActive reports whether in-band bytes should be scanned against
// the SLC table: either neither end has negotiated LINEMODE and simulated
// SLC is enabled (kludge mode), or the peer has LINEMODE on and editing is
// happening on our end.
func (s *StreamReader) slcSnoopActive() bool {
	if !s.IsLinemode() && s.config.SLCSimulated {
		return true
	}
	return s.remoteOption.enabled(optKey(LINEMODE)) && s.linemodeVal.Remote()
}

// pauseTransport and resumeTransport track our own notion of flow-control
// state so repeated XOFFs (or XONs) don't re-invoke the transport hook.
func (s *StreamReader) pauseTransport() {
	if s.paused {
		return
	}
	s.paused = true
	s.transport.PauseWriting()
}

func (s *StreamReader) resumeTransport() {
	if !s.paused {
		return
	}
	s.paused = false
	s.transport.ResumeWriting()
}

func (s *StreamReader) handleWill(opt byte) {
	s.log.Debugf("recv IAC WILL %s", nameCommand(opt))
	wasPending := s.pendingOption.enabled(cmdKey(DO, opt))
	if wasPending {
		s.pendingOption.set(cmdKey(DO, opt), false)
	}

	switch opt {
	case TM:
		// TM carries no enabled/disabled state of its own; receiving the
		// reply to our own DO TM is enough, the pending clear above is
		// the whole effect.
		return
	case LOGOUT:
		if s.IsClient() {
			s.fireExt(LOGOUT, WILL)
		}
		return
	case ECHO:
		if s.IsServer() {
			s.log.Warnf("WILL ECHO is illegal on the server end, ignoring")
			return
		}
	case NAWS, LINEMODE, SNDLOC:
		if s.IsClient() {
			s.log.Warnf("WILL %s is illegal on the client end, ignoring", nameCommand(opt))
			return
		}
	}

	if already, ok := s.remoteOption.get(optKey(opt)); ok && already {
		return
	}
	if s.acceptOption(opt) {
		s.remoteOption.set(optKey(opt), true)
		if !wasPending {
			s.sendIACOpt(DO, opt)
		}
		s.afterRemoteEnabled(opt)
	} else {
		s.remoteOption.set(optKey(opt), false)
		if !wasPending {
			s.sendIACOpt(DONT, opt)
		}
	}
}

func (s *StreamReader) handleWont(opt byte) {
	s.log.Debugf("recv IAC WONT %s", nameCommand(opt))
	wasPending := s.pendingOption.enabled(cmdKey(DO, opt))
	if wasPending {
		s.pendingOption.set(cmdKey(DO, opt), false)
	}
	s.remoteOption.set(optKey(opt), false)
	if !wasPending {
		s.sendIACOpt(DONT, opt)
	}
	if opt == LOGOUT && s.IsClient() {
		s.fireExt(LOGOUT, WONT)
	}
}

func (s *StreamReader) handleDo(opt byte) {
	s.log.Debugf("recv IAC DO %s", nameCommand(opt))

	switch opt {
	case TM:
		// Timing mark is a stateless ping: every DO TM gets an immediate
		// WILL TM, there is nothing to accept or refuse.
		s.sendIACOpt(WILL, TM)
		return
	case LOGOUT:
		if s.IsClient() {
			s.log.Warnf("DO LOGOUT received on client end, ignoring")
			return
		}
		s.fireExt(LOGOUT, DO)
		return
	case ECHO:
		if s.IsClient() {
			s.log.Warnf("DO ECHO is illegal on the client end, ignoring")
			return
		}
	case LINEMODE:
		if s.IsServer() {
			s.log.Warnf("DO LINEMODE is illegal on the server end, ignoring")
			return
		}
	}

	wasPending := s.pendingOption.enabled(cmdKey(WILL, opt))
	if wasPending {
		s.pendingOption.set(cmdKey(WILL, opt), false)
	}
	if already, ok := s.localOption.get(optKey(opt)); ok && already {
		return
	}
	if s.acceptOption(opt) {
		s.localOption.set(optKey(opt), true)
		if !wasPending {
			s.sendIACOpt(WILL, opt)
		}
		s.afterLocalEnabled(opt)
	} else {
		s.localOption.set(optKey(opt), false)
		if !wasPending {
			s.sendIACOpt(WONT, opt)
		}
	}
}

func (s *StreamReader) handleDont(opt byte) {
	s.log.Debugf("recv IAC DONT %s", nameCommand(opt))
	wasPending := s.pendingOption.enabled(cmdKey(WILL, opt))
	if wasPending {
		s.pendingOption.set(cmdKey(WILL, opt), false)
	}
	s.localOption.set(optKey(opt), false)
	if !wasPending {
		s.sendIACOpt(WONT, opt)
	}
	if opt == LOGOUT {
		s.fireExt(LOGOUT, DONT)
	}
}

// afterRemoteEnabled follows up once the peer has agreed to an option we
// (or they) proposed, kicking off the sub-negotiation that only makes
// sense once the option is live.
func (s *StreamReader) afterRemoteEnabled(opt byte) {
	switch opt {
	case STATUS:
		s.RequestStatus()
	case TTYPE:
		if s.IsServer() {
			s.RequestTTYPE()
		}
	case TSPEED:
		s.RequestTspeed()
	case LFLOW:
		if s.IsServer() {
			mode := LFLOW_RESTART_XON
			if s.config.XonAny {
				mode = LFLOW_RESTART_ANY
			}
			s.SendLineflowMode(mode)
		}
	case NEW_ENVIRON:
		if s.IsServer() {
			s.RequestEnv()
		}
	case CHARSET:
		s.RequestCharset()
	case XDISPLOC:
		if s.IsServer() {
			s.RequestXdisploc()
		}
	case LINEMODE:
		if s.IsServer() {
			s.sendLinemodeMode(s.config.DefaultLinemode)
		}
	}
}

// afterLocalEnabled follows up once we've agreed to enable an option the
// peer asked for.
func (s *StreamReader) afterLocalEnabled(opt byte) {
	switch opt {
	case STATUS:
		s.sendStatus()
	}
}

func (s *StreamReader) sendIACOpt(cmd, opt byte) {
	s.writeRaw([]byte{IAC, cmd, opt})
	s.log.Debugf("send IAC %s %s", nameCommand(cmd), nameCommand(opt))
}

func (s *StreamReader) writeRaw(p []byte) {
	if _, err := s.transport.Write(p); err != nil {
		s.log.Errorf("transport write: %v", err)
	}
}

// requestOption emits cmd (DO or WILL) for opt, returning false without
// writing anything if the option is already enabled on the side cmd
// addresses, or if a request for the same cmd+opt is already
// outstanding. Every request/send method returns bool uniformly: true
// when something was written, false when the call was a no-op.
func (s *StreamReader) requestOption(cmd, opt byte) bool {
	key := cmdKey(cmd, opt)
	if cmd == DO && s.remoteOption.enabled(optKey(opt)) {
		return false
	}
	if cmd == WILL && s.localOption.enabled(optKey(opt)) {
		return false
	}
	if s.pendingOption.enabled(key) {
		return false
	}
	s.pendingOption.set(key, true)
	s.sendIACOpt(cmd, opt)
	return true
}

// requestSB emits a sub-negotiation body for opt, returning false without
// writing anything if a request for opt's reply is already outstanding
// (pending[SB‖opt]). Callers clear the pending flag themselves once the
// corresponding reply arrives.
func (s *StreamReader) requestSB(opt byte, body []byte) bool {
	key := sbKey(opt)
	if s.pendingOption.enabled(key) {
		return false
	}
	s.pendingOption.set(key, true)
	s.sendSB(opt, body)
	return true
}

// RequestDo proposes that the peer enable opt.
func (s *StreamReader) RequestDo(opt byte) bool { return s.requestOption(DO, opt) }

// RequestWill proposes that we ourselves enable opt.
func (s *StreamReader) RequestWill(opt byte) bool { return s.requestOption(WILL, opt) }

// SendNegotiation writes a bare IAC cmd opt without pending-request
// bookkeeping, for one-shot assertions like an unsolicited DONT LINEMODE
// that the caller does not expect (or need) a matched reply for.
func (s *StreamReader) SendNegotiation(cmd, opt byte) { s.sendIACOpt(cmd, opt) }

// LocalOptionEnabled reports whether opt is currently enabled on our
// side of the connection.
func (s *StreamReader) LocalOptionEnabled(opt byte) bool {
	return s.localOption.enabled(optKey(opt))
}

// RemoteOptionEnabled reports whether opt is currently enabled on the
// peer's side of the connection.
func (s *StreamReader) RemoteOptionEnabled(opt byte) bool {
	return s.remoteOption.enabled(optKey(opt))
}

// --- sub-negotiation dispatch --------------------------------------------

func (s *StreamReader) handleSubnegotiation(opt byte, buf []byte) {
	switch opt {
	case TSPEED:
		s.handleSBTspeed(buf)
	case XDISPLOC:
		s.handleSBXdisploc(buf)
	case TTYPE:
		s.handleSBTtype(buf)
	case NEW_ENVIRON:
		s.handleSBEnv(buf)
	case SNDLOC:
		s.handleSBSndloc(buf)
	case NAWS:
		s.handleSBNaws(buf)
	case LFLOW:
		s.handleSBLflow(buf)
	case LINEMODE:
		s.handleSBLinemode(buf)
	case STATUS:
		s.handleSBStatus(buf)
	case CHARSET:
		s.handleSBCharset(buf)
	default:
		if cb, ok := s.callbacks.ext[opt]; ok {
			cb(opt, buf)
			return
		}
		s.log.Warnf("SB %s: no handler, %d bytes dropped", nameCommand(opt), len(buf))
	}
}

func (s *StreamReader) handleSBTspeed(buf []byte) {
	if len(buf) == 0 || buf[0] != IS {
		return
	}
	s.pendingOption.set(sbKey(TSPEED), false)
	parts := strings.SplitN(string(buf[1:]), ",", 2)
	var ts TSpeed
	if len(parts) == 2 {
		ts.Send, _ = strconv.Atoi(parts[0])
		ts.Receive, _ = strconv.Atoi(parts[1])
	}
	s.fireExt(TSPEED, ts)
}

func (s *StreamReader) handleSBXdisploc(buf []byte) {
	if len(buf) == 0 || buf[0] != IS {
		return
	}
	s.pendingOption.set(sbKey(XDISPLOC), false)
	s.fireExt(XDISPLOC, string(buf[1:]))
}

func (s *StreamReader) handleSBTtype(buf []byte) {
	if len(buf) == 0 {
		return
	}
	switch buf[0] {
	case IS:
		s.pendingOption.set(sbKey(TTYPE), false)
		s.termType = string(buf[1:])
		s.fireExt(TTYPE, s.termType)
	case SEND:
		s.fireExt(TTYPE, EnvRequest{})
	}
}

func (s *StreamReader) handleSBSndloc(buf []byte) {
	s.fireExt(SNDLOC, string(buf))
}

func (s *StreamReader) handleSBNaws(buf []byte) {
	if len(buf) != 4 {
		s.log.Warnf("NAWS: want 4 bytes, got %d", len(buf))
		return
	}
	s.fireExt(NAWS, WindowSize{
		Cols: uint16(buf[0])<<8 | uint16(buf[1]),
		Rows: uint16(buf[2])<<8 | uint16(buf[3]),
	})
}

func (s *StreamReader) handleSBLflow(buf []byte) {
	if len(buf) == 0 {
		return
	}
	switch buf[0] {
	case LFLOW_RESTART_ANY:
		s.config.XonAny = true
	case LFLOW_RESTART_XON:
		s.config.XonAny = false
	}
	s.fireExt(LFLOW, buf[0])
}

func (s *StreamReader) handleSBStatus(buf []byte) {
	if len(buf) == 0 {
		return
	}
	switch buf[0] {
	case SEND:
		s.sendStatus()
	case IS:
		s.pendingOption.set(sbKey(STATUS), false)
		s.fireExt(STATUS, buf[1:])
	}
}

func (s *StreamReader) sendStatus() {
	body := []byte{IS}
	for _, key := range s.localOption.keysInOrder() {
		if len(key) != 1 {
			continue
		}
		opt := key[0]
		if s.localOption.enabled(key) {
			body = append(body, WILL, opt)
		} else {
			body = append(body, WONT, opt)
		}
	}
	for _, key := range s.remoteOption.keysInOrder() {
		if len(key) != 1 {
			continue
		}
		opt := key[0]
		if s.remoteOption.enabled(key) {
			body = append(body, DO, opt)
		} else {
			body = append(body, DONT, opt)
		}
	}
	s.sendSB(STATUS, body)
}

func (s *StreamReader) handleSBCharset(buf []byte) {
	if len(buf) == 0 {
		return
	}
	switch buf[0] {
	case CHARSET_REQUEST:
		if len(buf) < 2 {
			return
		}
		sep := buf[1]
		names := strings.Split(string(buf[2:]), string(sep))
		chosen := selectCharset(names)
		if chosen == "" {
			s.sendSB(CHARSET, []byte{CHARSET_REJECTED})
			return
		}
		s.charset = chosen
		s.sendSB(CHARSET, append([]byte{CHARSET_ACCEPTED}, []byte(chosen)...))
		s.fireExt(CHARSET, chosen)
	case CHARSET_ACCEPTED:
		s.pendingOption.set(sbKey(CHARSET), false)
		s.charset = string(buf[1:])
		s.fireExt(CHARSET, s.charset)
	case CHARSET_REJECTED:
		s.pendingOption.set(sbKey(CHARSET), false)
		s.fireExt(CHARSET, "")
	}
}

// selectCharset picks the first name the peer offered that this engine
// recognizes: UTF-8 is always acceptable, CP437 is checked against
// charmap's BBS-era codepage table, and anything else is resolved through
// ianaindex against the full IANA registry.
func selectCharset(names []string) string {
	for _, n := range names {
		switch {
		case strings.EqualFold(n, "UTF-8"):
			return "UTF-8"
		case strings.EqualFold(n, "CP437"):
			if charmap.CodePage437 != nil {
				return "CP437"
			}
		default:
			if enc, err := ianaindex.IANA.Encoding(n); err == nil && enc != nil {
				return n
			}
		}
	}
	return ""
}

func (s *StreamReader) handleSBLinemode(buf []byte) {
	if len(buf) == 0 {
		return
	}
	switch buf[0] {
	case LMODE_MODE:
		if len(buf) < 2 {
			return
		}
		lm := NewLinemode(buf[1])
		s.linemodeVal = lm
		s.linemodeNegotiated = true
		if !lm.Ack() && s.IsServer() {
			s.sendLinemodeMode(lm.SetFlag(LMODE_MODE_ACK))
		}
		s.fireExt(LINEMODE, lm)
	case LMODE_SLC:
		s.slcReceivedFlag = true
		s.reconcileSLC(buf[1:])
	case DO:
		if len(buf) >= 2 && buf[1] == LMODE_FORWARDMASK {
			s.handleDoForwardmask(buf[2:])
		}
	default:
		s.log.Debugf("LINEMODE: unhandled sub-op %s", byteLabel(buf[0]))
	}
}

// handleDoForwardmask intentionally does nothing. Applying a
// server-pushed forwardmask requires cooperation from the local terminal
// driver that this engine does not own, so the payload is accepted and
// dropped rather than acted on.
func (s *StreamReader) handleDoForwardmask(buf []byte) {}

func (s *StreamReader) sendLinemodeMode(lm Linemode) {
	s.sendSB(LINEMODE, []byte{LMODE_MODE, lm.Mask()})
}

// reconcileSLC applies the peer's proposed SLC triplets against our
// table, replying with whichever entries need acknowledgement.
func (s *StreamReader) reconcileSLC(buf []byte) {
	var replies []byte
	for i := 0; i+3 <= len(buf); i += 3 {
		fn, flag, value := buf[i], buf[i+1], buf[i+2]

		if fn > NSLC {
			// Out of range: reply NOSUPPORT|ACK and leave the table alone.
			replies = append(replies, fn, SLC_NOSUPPORT|SLC_FLAG_ACK, posixVDisable)
			continue
		}

		if fn == 0 {
			switch flag & slcLevelMask {
			case SLC_DEFAULT:
				s.slcTab = s.config.slcTab()
				replies = append(replies, s.slcTabsetTriplets()...)
			case SLC_VARIABLE:
				replies = append(replies, s.slcTabsetTriplets()...)
			}
			continue
		}

		mine := s.slcTab.get(fn)
		result, ack := slcChange(mine, SLCDefinition{Flag: flag, Value: value})
		s.slcTab[fn] = result
		s.fireSLC(fn, result)
		if ack {
			replies = append(replies, fn, result.Flag|SLC_FLAG_ACK, result.Value)
		}
	}
	if len(replies) > 0 {
		s.sendSB(LINEMODE, append([]byte{LMODE_SLC}, replies...))
	}
}

// slcTabsetTriplets renders the full current table as wire triplets, used
// to answer the func-0 "send your tabset" requests (RFC 1184 §3.3.6).
func (s *StreamReader) slcTabsetTriplets() []byte {
	out := make([]byte, 0, NSLC*3)
	for fn := byte(1); fn <= NSLC; fn++ {
		d := s.slcTab.get(fn)
		out = append(out, fn, d.Flag, d.Value)
	}
	return out
}

// slcChange decides how our entry (mine) reconciles against the peer's
// proposal (theirs), in five cases: a function the peer doesn't support
// is adopted as unsupported, without acknowledgement; a peer request for
// our default is answered with our current entry unchanged; a proposal
// identical to what we already have needs no acknowledgement; a function
// the peer marked unchangeable is echoed back as-is; anything else is a
// genuine value change, accepted and acknowledged. The ACK bit of the
// proposal is not consulted, so an acknowledged proposal with a different
// value is accepted like a fresh one, and the default tabset is not
// consulted for an SLC_DEFAULT proposal.
func slcChange(mine, theirs SLCDefinition) (result SLCDefinition, ack bool) {
	switch {
	case theirs.NoSupport():
		return slcNoSupport(), false
	case theirs.Level() == SLC_DEFAULT:
		return mine, true
	case theirs.Level() == mine.Level() && theirs.Value == mine.Value:
		return mine, false
	case theirs.Level() == SLC_CANTCHANGE:
		return mine, true
	default:
		return SLCDefinition{Flag: theirs.Flag &^ SLC_FLAG_ACK, Value: theirs.Value}, true
	}
}

// handleSBEnv parses NEW_ENVIRON SEND/IS/INFO sub-negotiations in a
// single forward pass, tracking whether the current token is a name or
// a value as it goes, so a value byte that happens to equal a delimiter
// constant can never mis-split the buffer on a second pass.
func (s *StreamReader) handleSBEnv(buf []byte) {
	if len(buf) == 0 {
		return
	}
	switch buf[0] {
	case SEND:
		s.fireExt(NEW_ENVIRON, EnvRequest{Names: parseEnvRequestedNames(buf[1:])})
	case IS, INFO:
		s.pendingOption.set(sbKey(NEW_ENVIRON), false)
		s.fireExt(NEW_ENVIRON, parseEnvPairs(buf[1:]))
	}
}

func parseEnvRequestedNames(buf []byte) []string {
	var names []string
	var cur []byte
	for i := 0; i < len(buf); {
		switch buf[i] {
		case ENV_VAR, ENV_USERVAR:
			if len(cur) > 0 {
				names = append(names, string(cur))
				cur = nil
			}
			i++
		case ENV_ESC:
			i++
			if i < len(buf) {
				cur = append(cur, buf[i])
				i++
			}
		default:
			cur = append(cur, buf[i])
			i++
		}
	}
	if len(cur) > 0 {
		names = append(names, string(cur))
	}
	return names
}

func parseEnvPairs(buf []byte) []EnvVar {
	var out []EnvVar
	var name, value []byte
	var haveName, haveValue, isUser bool

	flush := func() {
		if haveName {
			out = append(out, EnvVar{Name: string(name), Value: string(value), User: isUser})
		}
		name, value = nil, nil
		haveName, haveValue = false, false
	}

	for i := 0; i < len(buf); {
		switch buf[i] {
		case ENV_VAR, ENV_USERVAR:
			flush()
			isUser = buf[i] == ENV_USERVAR
			haveName = true
			i++
		case ENV_VALUE:
			haveValue = true
			i++
		case ENV_ESC:
			i++
			if i < len(buf) {
				if haveValue {
					value = append(value, buf[i])
				} else {
					name = append(name, buf[i])
				}
				i++
			}
		default:
			if haveValue {
				value = append(value, buf[i])
			} else {
				name = append(name, buf[i])
			}
			i++
		}
	}
	flush()
	return out
}

// --- request/send emitters -----------------------------------------------

// RequestStatus asks the peer to report the full negotiated option state.
func (s *StreamReader) RequestStatus() bool {
	if !s.remoteOption.enabled(optKey(STATUS)) {
		return false
	}
	return s.requestSB(STATUS, []byte{SEND})
}

// RequestTTYPE asks the peer to report its terminal type.
func (s *StreamReader) RequestTTYPE() bool {
	if !s.remoteOption.enabled(optKey(TTYPE)) {
		return false
	}
	return s.requestSB(TTYPE, []byte{SEND})
}

// RequestTspeed asks the peer to report its terminal speed.
func (s *StreamReader) RequestTspeed() bool {
	if !s.remoteOption.enabled(optKey(TSPEED)) {
		return false
	}
	return s.requestSB(TSPEED, []byte{SEND})
}

// RequestXdisploc asks the peer to report its X11 display location.
func (s *StreamReader) RequestXdisploc() bool {
	if !s.remoteOption.enabled(optKey(XDISPLOC)) {
		return false
	}
	return s.requestSB(XDISPLOC, []byte{SEND})
}

// RequestCharset offers names for the peer to choose from, defaulting to
// UTF-8 and CP437 when names is empty.
func (s *StreamReader) RequestCharset(names ...string) bool {
	if !s.remoteOption.enabled(optKey(CHARSET)) {
		return false
	}
	if len(names) == 0 {
		names = []string{"UTF-8", "CP437"}
	}
	body := append([]byte{CHARSET_REQUEST, ';'}, []byte(strings.Join(names, ";"))...)
	return s.requestSB(CHARSET, body)
}

// RequestEnv asks the peer to report the named environment variables, or
// those in Config.EnvRequestVars when names is empty (everything, if that
// list is empty too).
func (s *StreamReader) RequestEnv(names ...string) bool {
	if !s.remoteOption.enabled(optKey(NEW_ENVIRON)) {
		return false
	}
	if len(names) == 0 {
		names = s.config.EnvRequestVars
	}
	body := []byte{SEND}
	for _, n := range names {
		body = append(body, ENV_VAR)
		body = append(body, []byte(n)...)
	}
	return s.requestSB(NEW_ENVIRON, body)
}

// SendEnv reports our own environment variables to the peer.
func (s *StreamReader) SendEnv(vars []EnvVar) bool {
	if !s.localOption.enabled(optKey(NEW_ENVIRON)) {
		return false
	}
	body := []byte{IS}
	for _, v := range vars {
		if v.User {
			body = append(body, ENV_USERVAR)
		} else {
			body = append(body, ENV_VAR)
		}
		body = append(body, escapeEnvToken([]byte(v.Name))...)
		body = append(body, ENV_VALUE)
		body = append(body, escapeEnvToken([]byte(v.Value))...)
	}
	s.sendSB(NEW_ENVIRON, body)
	return true
}

func escapeEnvToken(p []byte) []byte {
	out := make([]byte, 0, len(p))
	for _, b := range p {
		switch b {
		case ENV_VAR, ENV_VALUE, ENV_ESC, ENV_USERVAR:
			out = append(out, ENV_ESC)
		}
		out = append(out, b)
	}
	return out
}

// SendGA sends a bare Go-Ahead, refusing if SGA has been negotiated on.
func (s *StreamReader) SendGA() bool {
	if s.localOption.enabled(optKey(SGA)) {
		return false
	}
	s.writeRaw([]byte{IAC, GA})
	return true
}

// SendEOR sends an end-of-record marker, valid only once EOR has been
// negotiated.
func (s *StreamReader) SendEOR() bool {
	if !s.localOption.enabled(optKey(EOR)) {
		return false
	}
	s.writeRaw([]byte{IAC, EOR_CMD})
	return true
}

// SendLineflowMode reports a LFLOW mode change to the peer.
func (s *StreamReader) SendLineflowMode(mode byte) bool {
	if !s.remoteOption.enabled(optKey(LFLOW)) {
		return false
	}
	s.sendSB(LFLOW, []byte{mode})
	return true
}

// SendLinemode proposes lm as the new LINEMODE mode mask.
func (s *StreamReader) SendLinemode(lm Linemode) bool {
	if !s.IsLinemode() {
		return false
	}
	s.sendLinemodeMode(lm)
	return true
}

// RequestForwardmask pushes fm to the peer as the set of bytes it must
// forward unprocessed.
func (s *StreamReader) RequestForwardmask(fm Forwardmask) bool {
	if !s.remoteOption.enabled(optKey(LINEMODE)) {
		return false
	}
	s.sendSB(LINEMODE, append([]byte{DO, LMODE_FORWARDMASK}, fm.Bytes()...))
	return true
}

// GenerateForwardmask builds the forwardmask this StreamReader would send
// for the current SLC table.
func (s *StreamReader) GenerateForwardmask() Forwardmask {
	return generateForwardmask(s.slcTab, s.localOption.enabled(optKey(BINARY)) && s.remoteOption.enabled(optKey(BINARY)))
}

func (s *StreamReader) sendSB(opt byte, body []byte) {
	out := make([]byte, 0, len(body)+5)
	out = append(out, IAC, SB, opt)
	out = append(out, escapeIAC(body)...)
	out = append(out, IAC, SE)
	s.writeRaw(out)
}

// escapeIAC doubles every 0xFF byte so it cannot be mistaken for an IAC
// once embedded in the outgoing stream.
func escapeIAC(p []byte) []byte {
	has := false
	for _, b := range p {
		if b == IAC {
			has = true
			break
		}
	}
	if !has {
		return p
	}
	out := make([]byte, 0, len(p)+4)
	for _, b := range p {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	return out
}

// WriteData escapes and writes application data, outside of any
// sub-negotiation.
func (s *StreamReader) WriteData(p []byte) (int, error) {
	return s.transport.Write(escapeIAC(p))
}
