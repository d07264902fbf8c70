// Package connection reads, writes, and creates Jupyter connection files.
//
// A connection file tells clients where a kernel listens: one port per
// channel, the transport and bind address, and the HMAC key that signs
// every message. Kernels we launch get a fresh file with free ports and a
// random key in the Jupyter runtime directory; attaching to an already
// running kernel means loading the file it was started with.
package connection
