// Package host runs the supervised task set that makes up the process.
//
// A Task is immutable configuration plus a single-use Spawn. Spawning
// yields a Handle (or nil when the task is disabled by config); the
// Supervisor collects handles and drains them in RunLoop, logging both
// application errors and join failures without propagating either.
// Coordinated shutdown happens only through the quit bus: any task can
// signal it, every task must observe it and exit within bounded time.
package host
