// Package lifecycle coordinates the agent from startup to shutdown.
//
// Phases:
//
//	provisioning -> connecting -> running -> draining -> shut_down
//
// Provisioning only happens for DPS. A device that is not assigned, or a
// connection that cannot be opened, ends Run with an error before any
// task starts.
//
// While running, every task shares the one hub connection. On stop the
// coordinator abandons the initial property push if it is still in
// flight, cancels the listeners and then telemetry, waits at most the
// drain timeout for them to return, and shuts the connection down once.
package lifecycle
