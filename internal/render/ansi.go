package render

import "regexp"

// ansiRe matches CSI escape sequences, which is what kernels embed in
// tracebacks and colored stream output.
var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}
