// Package telnetconfig loads the telnet engine's tunables from a YAML
// file with viper, and watches it for edits with fsnotify so a running
// server picks up changes without a restart.
package telnetconfig

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/stlalpha/vision3-telnet/internal/logging"
	"github.com/stlalpha/vision3-telnet/internal/telnet"
)

// fileConfig is the on-disk shape, mapped onto telnet.Config by reload.
type fileConfig struct {
	XonAny         bool     `mapstructure:"xon_any"`
	SLCSimulated   bool     `mapstructure:"slc_simulated"`
	EnvRequestVars []string `mapstructure:"env_request_vars"`
	LinemodeMask   int      `mapstructure:"linemode_mask"`
}

// Loader wraps a viper instance bound to a single config file, publishing
// telnet.Config snapshots whenever the file changes on disk.
type Loader struct {
	v *viper.Viper

	mu  sync.RWMutex
	cur telnet.Config

	onChange func(telnet.Config)
}

// NewLoader reads path once to seed the initial config and starts
// watching it for subsequent edits. path's extension determines the
// format viper parses it with (".yaml", ".json", ".toml" all work).
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("xon_any", false)
	v.SetDefault("slc_simulated", true)
	v.SetDefault("env_request_vars", []string{"USER", "TERM", "COLUMNS", "LINES", "DISPLAY", "LANG"})
	v.SetDefault("linemode_mask", int(telnet.DefaultLinemode().Mask()))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("telnetconfig: reading %s: %w", path, err)
	}

	l := &Loader{v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logging.Info("telnetconfig: %s changed, reloading", e.Name)
		if err := l.reload(); err != nil {
			logging.Error("telnetconfig: reload failed: %v", err)
		}
	})
	v.WatchConfig()

	return l, nil
}

func (l *Loader) reload() error {
	var fc fileConfig
	if err := l.v.Unmarshal(&fc); err != nil {
		return fmt.Errorf("telnetconfig: unmarshal: %w", err)
	}

	cfg := telnet.DefaultConfig()
	cfg.XonAny = fc.XonAny
	cfg.SLCSimulated = fc.SLCSimulated
	if len(fc.EnvRequestVars) > 0 {
		cfg.EnvRequestVars = fc.EnvRequestVars
	}
	cfg.DefaultLinemode = telnet.NewLinemode(byte(fc.LinemodeMask))

	l.mu.Lock()
	l.cur = cfg
	onChange := l.onChange
	l.mu.Unlock()

	if onChange != nil {
		onChange(cfg)
	}
	return nil
}

// Current returns the most recently loaded telnet.Config.
func (l *Loader) Current() telnet.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// OnChange registers fn to run, with the new config, every time the file
// is reloaded. Only one callback is kept; a later call replaces an
// earlier one.
func (l *Loader) OnChange(fn func(telnet.Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// describeSource lists every key viper knows, upper-cased and
// comma-separated; keys from the file and from defaults are listed alike,
// without saying which source each came from.
func (l *Loader) describeSource() string {
	keys := l.v.AllKeys()
	for i, k := range keys {
		keys[i] = strings.ToUpper(k)
	}
	return strings.Join(keys, ", ")
}
