package kernelspec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// installSpec writes a kernel.json fixture under dir/name.
func installSpec(t *testing.T, dir, name, content string) {
	t.Helper()
	specDir := filepath.Join(dir, name)
	if err := os.MkdirAll(specDir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(specDir, SpecFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

const pythonSpec = `{
  "argv": ["python", "-m", "ipykernel_launcher", "-f", "{connection_file}"],
  "display_name": "Python 3",
  "language": "python"
}`

const juliaSpec = `{
  "argv": ["julia", "-i", "--startup-file=yes", "{connection_file}"],
  "display_name": "Julia 1.10",
  "language": "julia",
  "interrupt_mode": "message"
}`

func TestRegistry_List(t *testing.T) {
	user := t.TempDir()
	system := t.TempDir()

	installSpec(t, user, "python3", pythonSpec)
	installSpec(t, system, "julia-1.10", juliaSpec)
	// Shadowed by the user entry of the same name.
	installSpec(t, system, "python3", strings.Replace(pythonSpec, "Python 3", "System Python", 1))
	// Invalid entries are skipped.
	installSpec(t, system, "broken", `{"argv": []}`)
	installSpec(t, system, "garbled", `not json`)

	r := NewRegistryWithDirs(user, system)
	all, err := r.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(all) != 2 {
		t.Fatalf("List returned %d specs, want 2: %+v", len(all), all)
	}
	if all[0].Name != "julia-1.10" || all[1].Name != "python3" {
		t.Errorf("List order = %s, %s, want julia-1.10, python3", all[0].Name, all[1].Name)
	}
	if all[1].Spec.DisplayName != "Python 3" {
		t.Errorf("user spec should shadow system spec, got display name %q", all[1].Spec.DisplayName)
	}
	if all[0].Dir != filepath.Join(system, "julia-1.10") {
		t.Errorf("Dir = %s, want the system spec directory", all[0].Dir)
	}
}

func TestRegistry_List_MissingDirs(t *testing.T) {
	r := NewRegistryWithDirs(filepath.Join(t.TempDir(), "does-not-exist"))
	all, err := r.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("List = %+v, want empty", all)
	}
}

func TestRegistry_Find(t *testing.T) {
	dir := t.TempDir()
	installSpec(t, dir, "python3", pythonSpec)
	r := NewRegistryWithDirs(dir)

	inst, err := r.Find("python3")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if inst.Spec.Language != "python" {
		t.Errorf("Language = %q, want python", inst.Spec.Language)
	}

	// Lookup is case-insensitive.
	if _, err := r.Find("Python3"); err != nil {
		t.Errorf("case-insensitive Find failed: %v", err)
	}

	if _, err := r.Find("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(missing) = %v, want ErrNotFound", err)
	}
}

func TestRegistry_MatchNotebook(t *testing.T) {
	dir := t.TempDir()
	installSpec(t, dir, "julia-1.10", juliaSpec)
	installSpec(t, dir, "python3", pythonSpec)
	r := NewRegistryWithDirs(dir)

	// Recorded kernel name wins.
	inst, err := r.MatchNotebook("python3", "julia")
	if err != nil {
		t.Fatalf("MatchNotebook failed: %v", err)
	}
	if inst.Name != "python3" {
		t.Errorf("matched %q, want python3", inst.Name)
	}

	// Unknown name falls back to language.
	inst, err = r.MatchNotebook("python3-special-build", "julia")
	if err != nil {
		t.Fatalf("MatchNotebook fallback failed: %v", err)
	}
	if inst.Name != "julia-1.10" {
		t.Errorf("matched %q, want julia-1.10", inst.Name)
	}

	if _, err := r.MatchNotebook("", "fortran"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MatchNotebook(fortran) = %v, want ErrNotFound", err)
	}
	if _, err := r.MatchNotebook("", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("MatchNotebook with nothing to match = %v, want ErrNotFound", err)
	}
}

func TestRegistry_InstallRemove(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistryWithDirs(dir)

	spec := Spec{
		Argv:     []string{"deno", "jupyter", "--kernel", "--conn", "{connection_file}"},
		Language: "typescript",
	}

	inst, err := r.Install("Deno", spec)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if inst.Name != "deno" {
		t.Errorf("installed name = %q, want normalized deno", inst.Name)
	}
	if inst.Spec.DisplayName != "deno" {
		t.Errorf("display name should default to the kernel name, got %q", inst.Spec.DisplayName)
	}

	found, err := r.Find("deno")
	if err != nil {
		t.Fatalf("Find after Install failed: %v", err)
	}
	if found.Spec.Language != "typescript" {
		t.Errorf("round trip language = %q, want typescript", found.Spec.Language)
	}

	if _, err := r.Install("deno", Spec{Argv: []string{"deno"}}); !errors.Is(err, ErrNoConnectionArg) {
		t.Errorf("Install without placeholder = %v, want ErrNoConnectionArg", err)
	}

	removed, err := r.Remove("deno")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed != filepath.Join(dir, "deno") {
		t.Errorf("Remove returned %s, want the spec directory", removed)
	}
	if _, err := r.Find("deno"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find after Remove = %v, want ErrNotFound", err)
	}
}

func TestSearchDirs(t *testing.T) {
	sep := string(os.PathListSeparator)
	t.Setenv("JUPYTER_PATH", "/opt/site"+sep+"/opt/extra")
	t.Setenv("JUPYTER_DATA_DIR", "/home/me/jupyter-data")
	t.Setenv("VIRTUAL_ENV", "/home/me/.venvs/lab")

	dirs := SearchDirs()
	if len(dirs) < 4 {
		t.Fatalf("SearchDirs() = %v, want JUPYTER_PATH, user, env, and system entries", dirs)
	}

	if dirs[0] != filepath.Join("/opt/site", "kernels") || dirs[1] != filepath.Join("/opt/extra", "kernels") {
		t.Errorf("JUPYTER_PATH entries should lead: %v", dirs[:2])
	}
	if dirs[2] != filepath.Join("/home/me/jupyter-data", "kernels") {
		t.Errorf("user dir should follow JUPYTER_PATH: %v", dirs[2])
	}

	found := false
	for _, d := range dirs {
		if d == filepath.Join("/home/me/.venvs/lab", "share", "jupyter", "kernels") {
			found = true
		}
	}
	if !found {
		t.Errorf("VIRTUAL_ENV kernels dir missing from %v", dirs)
	}
}
