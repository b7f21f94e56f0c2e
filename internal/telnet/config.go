package telnet

// Config holds the tunables a StreamReader is constructed with. Its
// zero value is usable: DefaultConfig fills in the conventional BSD
// telnetd defaults, but exposes them so the viper-backed hot-reloadable
// loader in internal/telnetconfig can override them at runtime.
type Config struct {
	// DefaultSLCTab seeds the SLC table before any negotiation occurs.
	// Nil means DefaultSLCTab().
	DefaultSLCTab SLCTab

	// XonAny, when true, treats any received byte as an implicit XON
	// after flow has been paused by XOFF, rather than requiring XON
	// specifically (RFC 1372 LFLOW behavior).
	XonAny bool

	// SLCSimulated controls whether unsupported SLC functions are
	// simulated by scanning in-band data for their bound value when the
	// peer cannot intercept them itself.
	SLCSimulated bool

	// EnvRequestVars lists the NEW_ENVIRON variable names requested by
	// default when RequestEnv is called with no explicit var list.
	EnvRequestVars []string

	// DefaultLinemode is what a server proposes when LINEMODE is
	// negotiated and the peer has not yet stated a mode.
	DefaultLinemode Linemode
}

// DefaultConfig returns the conventional defaults.
func DefaultConfig() Config {
	return Config{
		DefaultSLCTab:   DefaultSLCTab(),
		XonAny:          false,
		SLCSimulated:    true,
		EnvRequestVars:  []string{"USER", "TERM", "COLUMNS", "LINES", "DISPLAY", "LANG"},
		DefaultLinemode: DefaultLinemode(),
	}
}

func (c Config) slcTab() SLCTab {
	if c.DefaultSLCTab != nil {
		return c.DefaultSLCTab.clone()
	}
	return DefaultSLCTab()
}
