// control/flags.go
// Author: momentics <momentics@gmail.com>
//
// Command-line flags shared by the server programs. Explicit flags override
// values loaded from --config.

package control

import (
	"github.com/spf13/pflag"
)

// Flags binds the server flags to a FlagSet.
type Flags struct {
	fs     *pflag.FlagSet
	config string
	dump   string
	values Config
}

// RegisterFlags adds the server flags to fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: DefaultConfig()}
	v := &f.values
	fs.StringVarP(&f.config, "config", "c", "", "HuJSON config file")
	fs.StringVar(&f.dump, "dump-config", "", "write the effective config to this path")
	fs.StringVarP(&v.Address, "address", "a", v.Address, "listen address (IP literal)")
	fs.Uint16VarP(&v.Port, "port", "p", v.Port, "listen port")
	fs.IntVar(&v.Backlog, "backlog", v.Backlog, "listen backlog")
	fs.IntVar(&v.MaxClients, "max-clients", v.MaxClients, "maximum concurrent connections")
	fs.IntVar(&v.ReadBufferSize, "read-buffer", v.ReadBufferSize, "receive buffer size in bytes")
	fs.BoolVar(&v.ReusePort, "reuse-port", v.ReusePort, "set SO_REUSEPORT on the listener")
	fs.BoolVar(&v.NoDelay, "no-delay", v.NoDelay, "set TCP_NODELAY on accepted connections")
	fs.IntVar(&v.SndBuf, "sndbuf", v.SndBuf, "SO_SNDBUF for accepted connections (0 keeps the default)")
	fs.IntVar(&v.RcvBuf, "rcvbuf", v.RcvBuf, "SO_RCVBUF for the listener (0 keeps the default)")
	fs.StringVar(&v.LogLevel, "log-level", v.LogLevel, "log level (trace, debug, info, warn, error)")
	fs.StringVar(&v.Root, "root", v.Root, "document root")
	return f
}

// ConfigPath returns the --config value.
func (f *Flags) ConfigPath() string { return f.config }

// DumpPath returns the --dump-config value.
func (f *Flags) DumpPath() string { return f.dump }

// Resolve builds the effective config: defaults, then the --config file,
// then every flag set on the command line. Call it after parsing.
func (f *Flags) Resolve() (Config, error) {
	cfg := DefaultConfig()
	if f.config != "" {
		loaded, err := LoadConfig(f.config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	v := f.values
	overrides := map[string]func(){
		"address":     func() { cfg.Address = v.Address },
		"port":        func() { cfg.Port = v.Port },
		"backlog":     func() { cfg.Backlog = v.Backlog },
		"max-clients": func() { cfg.MaxClients = v.MaxClients },
		"read-buffer": func() { cfg.ReadBufferSize = v.ReadBufferSize },
		"reuse-port":  func() { cfg.ReusePort = v.ReusePort },
		"no-delay":    func() { cfg.NoDelay = v.NoDelay },
		"sndbuf":      func() { cfg.SndBuf = v.SndBuf },
		"rcvbuf":      func() { cfg.RcvBuf = v.RcvBuf },
		"log-level":   func() { cfg.LogLevel = v.LogLevel },
		"root":        func() { cfg.Root = v.Root },
	}
	f.fs.Visit(func(fl *pflag.Flag) {
		if apply, ok := overrides[fl.Name]; ok {
			apply()
		}
	})
	return cfg, cfg.Validate()
}
