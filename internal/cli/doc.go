// Package cli parses invocations and executes the nbkernel subcommands:
// kernelspec management (kernels, register, remove), notebook inspection
// (import, cells, clear), headless execution (run), and the interactive
// console (attach).
//
// Run is the single entry point; it returns a semantic exit code rather
// than calling os.Exit, so whole invocations are black-box testable.
// Exit codes: 0 success, 1 execution failure, 2 invalid invocation,
// 3 configuration error, 4 internal error.
package cli
