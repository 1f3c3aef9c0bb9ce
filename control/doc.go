// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, configuration files and logger construction for tsnet.
//
// Provides:
//   - MetricsRegistry: counters and gauges the reactor updates from its loop
//     goroutine and any goroutine may snapshot
//   - Config: HuJSON-backed server configuration with atomic dumps
//   - Flags: pflag bindings that override values loaded from --config
//   - Reloader: re-reads the config file and runs hooks (LevelHook)
//   - DebugProbes: named probes dumped on demand
//   - NewLogger: zerolog console logger at a configured level
package control
