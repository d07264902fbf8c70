// Package kernelspec discovers, validates, and manages Jupyter kernel
// specifications.
//
// A kernelspec is a directory containing a kernel.json file that tells a
// client how to launch one kind of kernel: the argv to exec, the display
// name, the implementation language, and how the kernel prefers to be
// interrupted. Specs live under the kernels/ subdirectory of the Jupyter
// data directories; per-user specs shadow system-wide ones of the same
// name.
//
// The Registry scans those directories and resolves which installed kernel
// should serve a given notebook, matching the notebook's recorded kernel
// name first and falling back to its language.
package kernelspec
