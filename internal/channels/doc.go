// Package channels connects the five ZeroMQ sockets a Jupyter kernel
// exposes and moves wire messages over them.
//
// Shell, control, and stdin are DEALER sockets carrying request/reply
// traffic; iopub is a SUB socket subscribed to everything the kernel
// broadcasts; the heartbeat is a REQ socket pinged on an interval to detect
// a dead or wedged kernel. The Conn bundles the first four behind typed
// send and receive calls, and Heartbeat runs the ping loop with miss
// accounting.
//
// Sockets are consumed through a small interface so tests drive the wire
// protocol through in-memory fakes instead of a live kernel.
package channels
