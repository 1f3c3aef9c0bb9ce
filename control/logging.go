// control/logging.go
// Author: momentics <momentics@gmail.com>
//
// Logger construction shared by the example programs.

package control

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/tsnet/api"
)

// ParseLevel maps a config level name to a zerolog level. Empty means info.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, api.NewError(api.ErrCodeInvalidArgument, "control.parse_level", "unknown log level").
			WithContext("level", name)
	}
	return lvl, nil
}

// NewLogger returns a console logger writing to w. The level is applied
// process-wide so LevelHook can change it later.
func NewLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	zerolog.SetGlobalLevel(lvl)
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).With().Timestamp().Logger(), nil
}
