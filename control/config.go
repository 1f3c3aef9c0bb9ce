// control/config.go
// Author: momentics <momentics@gmail.com>
//
// File-backed configuration for tsnet programs. Files are JSON with comments
// and trailing commas (HuJSON); dumps are written atomically.

package control

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/momentics/tsnet/api"
)

// Config is the effective configuration of a tsnet server program.
type Config struct {
	Address        string `json:"address"`
	Port           uint16 `json:"port"`
	Backlog        int    `json:"backlog"`
	MaxClients     int    `json:"max_clients"`
	ReadBufferSize int    `json:"read_buffer_size"`
	ReusePort      bool   `json:"reuse_port"`
	NoDelay        bool   `json:"no_delay"`
	SndBuf         int    `json:"snd_buf,omitempty"`
	RcvBuf         int    `json:"rcv_buf,omitempty"`
	LogLevel       string `json:"log_level"`
	// Root is the document root served by the file server example.
	Root string `json:"root,omitempty"`
}

// DefaultConfig returns the values used when neither a file nor a flag sets them.
func DefaultConfig() Config {
	return Config{
		Address:        "0.0.0.0",
		Port:           8080,
		Backlog:        64,
		MaxClients:     1024,
		ReadBufferSize: 8192 * 16,
		ReusePort:      true,
		LogLevel:       "info",
	}
}

// LoadConfig reads path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, api.NewError(api.ErrCodeNotFound, "control.load_config", "cannot read config").
			WithContext("path", path).Wrap(err)
	}
	if err := DecodeConfig(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DecodeConfig merges a HuJSON document into cfg and validates the result.
func DecodeConfig(raw []byte, cfg *Config) error {
	std, err := hujson.Standardize(raw)
	if err != nil {
		return api.NewError(api.ErrCodeInvalidArgument, "control.decode_config", "malformed config").Wrap(err)
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return api.NewError(api.ErrCodeInvalidArgument, "control.decode_config", "malformed config").Wrap(err)
	}
	return cfg.Validate()
}

// Validate rejects values the reactor cannot use.
func (c Config) Validate() error {
	switch {
	case c.Backlog < 0:
		return api.NewError(api.ErrCodeInvalidArgument, "control.validate", "negative backlog").
			WithContext("backlog", c.Backlog)
	case c.MaxClients < 0:
		return api.NewError(api.ErrCodeInvalidArgument, "control.validate", "negative max_clients").
			WithContext("max_clients", c.MaxClients)
	case c.ReadBufferSize < 0:
		return api.NewError(api.ErrCodeInvalidArgument, "control.validate", "negative read_buffer_size").
			WithContext("read_buffer_size", c.ReadBufferSize)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// WriteConfig stores cfg at path, replacing any previous file atomically.
func WriteConfig(path string, cfg Config) error {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return api.NewError(api.ErrCodeInvalidArgument, "control.write_config", "encode").Wrap(err)
	}
	out = append(out, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(out)); err != nil {
		return api.NewError(api.ErrCodeSyscall, "control.write_config", "write").
			WithContext("path", path).Wrap(err)
	}
	return nil
}
