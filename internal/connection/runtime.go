package connection

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bengtfrost/nbkernel/internal/kernelspec"
)

// RuntimeDir returns the Jupyter runtime directory where connection files
// live, honoring JUPYTER_RUNTIME_DIR.
func RuntimeDir() (string, error) {
	if dir := os.Getenv("JUPYTER_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}
	data, err := kernelspec.UserDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(data, "runtime"), nil
}

// CreateFile writes fresh connection info into the runtime directory under a
// unique kernel-<id>.json name and returns the path.
func CreateFile(info *Info) (string, error) {
	dir, err := RuntimeDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create runtime dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("kernel-%s.json", uuid.NewString()))
	if err := info.Write(path); err != nil {
		return "", err
	}
	return path, nil
}
