package kernelspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Installed is a kernelspec found on disk.
type Installed struct {
	// Name is the normalized kernelspec name.
	Name string

	// Dir is the resource directory holding kernel.json.
	Dir string

	// Spec is the parsed kernel.json.
	Spec Spec
}

// Registry finds and manages installed kernelspecs across the Jupyter
// search directories.
type Registry struct {
	dirs       []string
	installDir string
}

// NewRegistry builds a registry over the standard search directories.
// Installs go to the per-user kernels directory.
func NewRegistry() *Registry {
	r := &Registry{dirs: SearchDirs()}
	if user, err := UserKernelsDir(); err == nil {
		r.installDir = user
	}
	return r
}

// NewRegistryWithDirs builds a registry over explicit directories, earliest
// shadowing latest. The first directory receives installs.
func NewRegistryWithDirs(dirs ...string) *Registry {
	r := &Registry{dirs: dirs}
	if len(dirs) > 0 {
		r.installDir = dirs[0]
	}
	return r
}

// List returns every installed kernelspec, sorted by name. When the same
// name appears in several directories, the earliest directory wins. Entries
// with unparseable or invalid kernel.json files are skipped.
func (r *Registry) List() ([]Installed, error) {
	seen := make(map[string]bool)
	var out []Installed

	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := NormalizeName(entry.Name())
			if seen[name] || ValidateName(name) != nil {
				continue
			}
			spec, err := readSpec(filepath.Join(dir, entry.Name(), SpecFile))
			if err != nil {
				continue
			}
			seen[name] = true
			out = append(out, Installed{
				Name: name,
				Dir:  filepath.Join(dir, entry.Name()),
				Spec: withDisplayDefault(spec, name),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Find returns the installed kernelspec with the given name. Lookup is
// case-insensitive.
func (r *Registry) Find(name string) (Installed, error) {
	name = NormalizeName(name)
	if err := ValidateName(name); err != nil {
		return Installed{}, err
	}

	for _, dir := range r.dirs {
		path := filepath.Join(dir, name)
		spec, err := readSpec(filepath.Join(path, SpecFile))
		if err != nil {
			continue
		}
		return Installed{Name: name, Dir: path, Spec: withDisplayDefault(spec, name)}, nil
	}

	// Directory names may differ in case from the normalized name.
	all, err := r.List()
	if err != nil {
		return Installed{}, err
	}
	for _, inst := range all {
		if inst.Name == name {
			return inst, nil
		}
	}
	return Installed{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// MatchNotebook picks the installed kernelspec that should serve a notebook,
// preferring the notebook's recorded kernel name and falling back to the
// first kernel implementing its language.
func (r *Registry) MatchNotebook(kernelName, language string) (Installed, error) {
	if kernelName != "" {
		if inst, err := r.Find(kernelName); err == nil {
			return inst, nil
		}
	}
	if language != "" {
		all, err := r.List()
		if err != nil {
			return Installed{}, err
		}
		for _, inst := range all {
			if strings.EqualFold(inst.Spec.Language, language) {
				return inst, nil
			}
		}
	}
	return Installed{}, fmt.Errorf("%w for kernel %q, language %q", ErrNotFound, kernelName, language)
}

// Install writes a kernelspec into the install directory, replacing any
// existing spec of the same name there.
func (r *Registry) Install(name string, spec Spec) (Installed, error) {
	name = NormalizeName(name)
	if err := ValidateName(name); err != nil {
		return Installed{}, err
	}
	if err := spec.Validate(); err != nil {
		return Installed{}, fmt.Errorf("kernelspec %q: %w", name, err)
	}
	if r.installDir == "" {
		return Installed{}, ErrNoUserDir
	}
	spec = withDisplayDefault(spec, name)

	dir := filepath.Join(r.installDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Installed{}, fmt.Errorf("create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(&spec, "", "  ")
	if err != nil {
		return Installed{}, err
	}
	data = append(data, '\n')

	path := filepath.Join(dir, SpecFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Installed{}, fmt.Errorf("write %s: %w", path, err)
	}
	return Installed{Name: name, Dir: dir, Spec: spec}, nil
}

// Remove deletes an installed kernelspec's directory and returns the path
// that was removed.
func (r *Registry) Remove(name string) (string, error) {
	inst, err := r.Find(name)
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(inst.Dir); err != nil {
		return "", fmt.Errorf("remove %s: %w", inst.Dir, err)
	}
	return inst.Dir, nil
}

// readSpec loads and validates one kernel.json.
func readSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, err
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

func withDisplayDefault(spec Spec, name string) Spec {
	if spec.DisplayName == "" {
		spec.DisplayName = name
	}
	return spec
}
