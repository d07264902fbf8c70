package cli

import (
	"context"
	"fmt"

	"github.com/bengtfrost/nbkernel/internal/kernel"
	"github.com/bengtfrost/nbkernel/internal/kernelspec"
	"github.com/bengtfrost/nbkernel/internal/session"
)

// kernelConfig maps the config file's kernel section onto client
// timeouts, keeping client defaults for anything unset.
func (a *app) kernelConfig() kernel.Config {
	kcfg := kernel.DefaultConfig()
	if d := a.cfg.Kernel.StartupTimeout.Std(); d > 0 {
		kcfg.StartupTimeout = d
	}
	if d := a.cfg.Kernel.RequestTimeout.Std(); d > 0 {
		kcfg.RequestTimeout = d
	}
	if d := a.cfg.Kernel.HeartbeatInterval.Std(); d > 0 {
		kcfg.HeartbeatInterval = d
	}
	if n := a.cfg.Kernel.HeartbeatMisses; n > 0 {
		kcfg.HeartbeatMaxMisses = n
	}
	return kcfg
}

// resolveKernelspec picks the kernelspec for a notebook: an explicit
// name first, then the notebook's own metadata, then the configured
// default kernel.
func (a *app) resolveKernelspec(reg *kernelspec.Registry, s *session.Session, name string) (kernelspec.Installed, error) {
	if name != "" {
		return reg.Find(name)
	}
	inst, err := reg.MatchNotebook(s.KernelName(), s.Language())
	if err == nil {
		return inst, nil
	}
	if a.cfg.DefaultKernel != "" {
		if inst, derr := reg.Find(a.cfg.DefaultKernel); derr == nil {
			return inst, nil
		}
	}
	return kernelspec.Installed{}, err
}

// connect builds a kernel client for the session and either launches a
// kernel from a kernelspec or attaches to an existing connection file.
func (a *app) connect(ctx context.Context, s *session.Session, kernelName, existing string, stdin kernel.StdinHandler) (*kernel.Client, error) {
	opts := []kernel.Option{
		kernel.WithConfig(a.kernelConfig()),
		kernel.WithLogger(a.log.With().Str("component", "kernel").Logger()),
	}
	if stdin != nil {
		opts = append(opts, kernel.WithStdinHandler(stdin))
	}
	client := kernel.New(opts...)

	if existing != "" {
		if err := client.Attach(ctx, existing); err != nil {
			client.Close()
			return nil, fmt.Errorf("attach to %s: %w", existing, err)
		}
		return client, nil
	}

	reg := kernelspec.NewRegistry()
	inst, err := a.resolveKernelspec(reg, s, kernelName)
	if err != nil {
		return nil, err
	}
	if err := client.Launch(ctx, inst); err != nil {
		client.Close()
		return nil, fmt.Errorf("launch kernel %q: %w", inst.Name, err)
	}
	return client, nil
}

// disconnect shuts down kernels we launched and detaches from foreign
// ones without touching their process.
func (a *app) disconnect(client *kernel.Client) {
	if client.Owned() {
		timeout := a.cfg.Kernel.ShutdownTimeout.Std()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := client.Shutdown(ctx, false); err != nil {
			a.log.Warn().Err(err).Msg("kernel shutdown failed")
			client.Close()
		}
		return
	}
	client.Close()
}
