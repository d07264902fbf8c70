// Package console implements the interactive notebook REPL used by the
// attach command.
//
// A Console reads lines from a single input stream and either sends them
// to the kernel as ad-hoc code or, for lines starting with ':', runs a
// console command (:cell, :next, :import, :sync and friends, see :help).
// Multi-line input is collected by asking the kernel is_complete until it
// stops reporting "incomplete".
//
// The console owns the input reader. Kernel input_request prompts are
// answered through StdinHandler, which shares that reader; this is safe
// because the REPL loop is blocked on the in-flight execute while the
// handler runs. Ctrl-C interrupts the kernel when an execute is in
// flight and is otherwise a no-op.
package console
