package kernelspec

import (
	"os"
	"path/filepath"
	"runtime"
)

// kernelsSubdir is appended to every Jupyter data directory.
const kernelsSubdir = "kernels"

// UserDataDir returns the per-user Jupyter data directory, honoring
// JUPYTER_DATA_DIR.
func UserDataDir() (string, error) {
	if dir := os.Getenv("JUPYTER_DATA_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Jupyter"), nil
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "jupyter"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "jupyter"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "jupyter"), nil
		}
		return filepath.Join(home, ".local", "share", "jupyter"), nil
	}
}

// UserKernelsDir returns the directory new kernelspecs are installed into.
func UserKernelsDir() (string, error) {
	data, err := UserDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(data, kernelsSubdir), nil
}

// SearchDirs returns the kernels directories in shadowing order: JUPYTER_PATH
// entries first, then the user directory, then active environment prefixes,
// then system-wide locations. Directories need not exist.
func SearchDirs() []string {
	var dirs []string

	for _, p := range filepath.SplitList(os.Getenv("JUPYTER_PATH")) {
		if p != "" {
			dirs = append(dirs, filepath.Join(p, kernelsSubdir))
		}
	}

	if user, err := UserKernelsDir(); err == nil {
		dirs = append(dirs, user)
	}

	for _, env := range []string{"VIRTUAL_ENV", "CONDA_PREFIX"} {
		if prefix := os.Getenv(env); prefix != "" {
			dirs = append(dirs, filepath.Join(prefix, "share", "jupyter", kernelsSubdir))
		}
	}

	if runtime.GOOS != "windows" {
		dirs = append(dirs,
			filepath.Join("/usr", "local", "share", "jupyter", kernelsSubdir),
			filepath.Join("/usr", "share", "jupyter", kernelsSubdir),
		)
	}

	return dedupe(dirs)
}

func dedupe(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := dirs[:0]
	for _, d := range dirs {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
