// Package quit implements the process-wide shutdown signal.
//
// The bus is a one-shot, level-triggered broadcast: once signaled it
// stays signaled, and a subscriber created after the fact still observes
// it immediately. Any component holding the bus may request shutdown;
// none owns it exclusively.
package quit
