package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/bengtfrost/nbkernel/internal/kernelspec"
)

// cmdKernels lists every installed kernelspec in search-path order.
func (a *app) cmdKernels(args []string) int {
	fs := flag.NewFlagSet("kernels", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return a.fail(invalidInvocationf("kernels: %v", err))
	}
	if fs.NArg() != 0 {
		return a.fail(invalidInvocationf("kernels takes no arguments, got %q", strings.Join(fs.Args(), " ")))
	}

	reg := kernelspec.NewRegistry()
	list, err := reg.List()
	if err != nil {
		return a.fail(err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "No kernelspecs installed.")
		return ExitSuccess
	}

	nameW, langW := len("NAME"), len("LANGUAGE")
	for _, inst := range list {
		if len(inst.Name) > nameW {
			nameW = len(inst.Name)
		}
		if len(inst.Spec.Language) > langW {
			langW = len(inst.Spec.Language)
		}
	}
	fmt.Fprintf(a.stdout, "%-*s  %-*s  %s\n", nameW, "NAME", langW, "LANGUAGE", "DISPLAY NAME")
	for _, inst := range list {
		display := inst.Spec.DisplayName
		if inst.Name == a.cfg.DefaultKernel {
			display += " (default)"
		}
		fmt.Fprintf(a.stdout, "%-*s  %-*s  %s\n", nameW, inst.Name, langW, inst.Spec.Language, display)
	}
	return ExitSuccess
}

// cmdRegister writes a kernelspec into the user kernels directory. The
// launch argv follows the flags; one entry must carry the
// {connection_file} placeholder.
func (a *app) cmdRegister(args []string) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		name      string
		display   string
		language  string
		interrupt string
		env       []string
	)
	fs.StringVar(&name, "name", "", "Kernelspec name. Required.")
	fs.StringVar(&display, "display", "", "Display name shown by UIs")
	fs.StringVar(&language, "language", "", "Implementation language")
	fs.StringVar(&interrupt, "interrupt-mode", "", "Interrupt mode: signal|message")
	fs.Func("env", "Extra KEY=VALUE for the kernel process (repeatable)", func(v string) error {
		if !strings.Contains(v, "=") {
			return fmt.Errorf("want KEY=VALUE, got %q", v)
		}
		env = append(env, v)
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return a.fail(invalidInvocationf("register: %v", err))
	}
	if name == "" {
		return a.fail(invalidInvocationf("register: -name is required"))
	}
	argv := fs.Args()
	if len(argv) == 0 {
		return a.fail(invalidInvocationf("register: launch argv is required after the flags"))
	}

	spec := kernelspec.Spec{
		Argv:          argv,
		DisplayName:   display,
		Language:      language,
		InterruptMode: interrupt,
	}
	if len(env) > 0 {
		spec.Env = make(map[string]string, len(env))
		for _, kv := range env {
			k, v, _ := strings.Cut(kv, "=")
			spec.Env[k] = v
		}
	}

	reg := kernelspec.NewRegistry()
	inst, err := reg.Install(name, spec)
	if err != nil {
		if errors.Is(err, kernelspec.ErrNoArgv) ||
			errors.Is(err, kernelspec.ErrNoConnectionArg) ||
			errors.Is(err, kernelspec.ErrInvalidName) {
			return a.fail(invalidInvocationf("register: %v", err))
		}
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout, "Registered kernelspec %q in %s\n", inst.Name, inst.Dir)
	return ExitSuccess
}

// cmdRemove deletes an installed kernelspec.
func (a *app) cmdRemove(args []string) int {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return a.fail(invalidInvocationf("remove: %v", err))
	}
	if fs.NArg() != 1 {
		return a.fail(invalidInvocationf("remove takes exactly one kernelspec name"))
	}

	reg := kernelspec.NewRegistry()
	dir, err := reg.Remove(fs.Arg(0))
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout, "Removed %s\n", dir)
	return ExitSuccess
}
