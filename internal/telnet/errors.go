package telnet

import "errors"

// ErrBufferOverflow is returned by Feed when a peer overruns the
// sub-negotiation buffer (SB_MAXSIZE). It indicates a hostile or broken
// peer; the caller is expected to drop the connection rather than keep
// feeding it bytes.
var ErrBufferOverflow = errors.New("telnet: sub-negotiation buffer overflow")
