// Package kernel manages live Jupyter kernels: launching them from a
// kernelspec, attaching to ones already running, executing code, and
// keeping them alive.
//
// A Client owns the five protocol channels of one kernel. Requests are
// correlated to replies by parent message ID, iopub broadcasts are folded
// into the in-flight execution, and a heartbeat monitor detects kernels
// that died without saying goodbye. Executions are serialized: one
// execute_request is in flight at a time, while interrupt and shutdown
// travel on the control channel and bypass the queue.
//
// The Supervisor layers crash recovery on top, relaunching a kernel we own
// with exponential backoff when it exits unexpectedly. Kernels we merely
// attached to are never restarted or killed; losing one is reported, not
// repaired.
package kernel
