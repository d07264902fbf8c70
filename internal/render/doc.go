// Package render turns notebook outputs and markdown cells into
// terminal text.
//
// Rich outputs carry a MIME bundle; the renderer picks the richest
// representation a terminal can show: markdown is laid out with styled
// headings and code blocks, images collapse to a placeholder with
// their decoded size, and text/plain is the final fallback. Kernel
// tracebacks arrive with ANSI escapes already embedded and pass
// through untouched in color mode.
package render
