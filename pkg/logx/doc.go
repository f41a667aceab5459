// Package logx configures overseer's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - A bounded in-memory cache of recent lines for the TUI log view
//
// Sinks and level can be swapped at runtime via Service.Apply (config
// hot-reload), and the console sink can be muted while the TUI owns the
// terminal without touching the file or cache sinks.
package logx
