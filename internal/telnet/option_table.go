package telnet

// optionTable is a logged mapping from a negotiation key to a boolean
// state, used three times by StreamReader: local options, remote
// options, and pending requests. Keys are built by optKey/cmdKey/sbKey
// below: a single opt byte for negotiated options, cmd+opt for pending
// DO/WILL requests, and SB+opt for pending sub-negotiations.
//
// Absence of a key means "unnegotiated", semantically equal to false.
// Entries are never deleted once written, and insertion order is
// preserved so STATUS reports options in the order they were first
// touched, which a bare Go map would not guarantee across runs.
type optionTable struct {
	name   string
	log    Logger
	values map[string]bool
	order  []string
}

func newOptionTable(name string, log Logger) *optionTable {
	return &optionTable{name: name, log: log, values: map[string]bool{}}
}

// enabled reports whether the table's value for key is exactly true.
func (o *optionTable) enabled(key string) bool {
	return o.values[key]
}

// get reports the raw stored value and whether the key has ever been set.
func (o *optionTable) get(key string) (value bool, ok bool) {
	value, ok = o.values[key]
	return
}

// set stores value under key, logging every write at debug level.
func (o *optionTable) set(key string, value bool) {
	o.log.Debugf("%s[%s] = %v", o.name, describeKey(key), value)
	if _, existed := o.values[key]; !existed {
		o.order = append(o.order, key)
	}
	o.values[key] = value
}

// keysInOrder returns the keys in the order they were first written.
func (o *optionTable) keysInOrder() []string {
	return o.order
}

// optKey builds a single-opt-byte key, used for local_option/remote_option
// entries such as local_option[ECHO].
func optKey(opt byte) string {
	return string([]byte{opt})
}

// cmdKey builds a two-byte cmd+opt key, used for pending_option entries
// tracking an outstanding DO/WILL/DONT/WONT request.
func cmdKey(cmd, opt byte) string {
	return string([]byte{cmd, opt})
}

// sbKey builds a pending-sub-negotiation key: SB‖opt, followed by any
// bytes in rest. Every caller in this package, NEW_ENVIRON included,
// passes opt alone.
func sbKey(opt byte, rest ...byte) string {
	b := make([]byte, 0, 2+len(rest))
	b = append(b, SB, opt)
	b = append(b, rest...)
	return string(b)
}

// describeKey renders a key for debug logging: each of the first two
// bytes (the command-ish bytes) is rendered via nameCommand, any bytes
// beyond that are rendered as plain Go byte literals.
func describeKey(key string) string {
	b := []byte(key)
	out := ""
	for i, c := range b {
		if i > 0 {
			out += " + "
		}
		if i < 2 {
			out += nameCommand(c)
		} else {
			out += byteLabel(c)
		}
	}
	return out
}
