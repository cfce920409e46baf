// Package app wires the daemon's components together (C1-C8), mirroring
// the teacher's App bootstrap struct.
package app

import (
	"context"
	"errors"
	"fmt"

	wl "github.com/rajveermalviya/go-wayland/wayland"
	"github.com/sirupsen/logrus"

	"github.com/emersion/go-kanshi/pkg/compositor"
	"github.com/emersion/go-kanshi/pkg/compositor/outputmanagement"
	"github.com/emersion/go-kanshi/pkg/config"
	"github.com/emersion/go-kanshi/pkg/engine"
	"github.com/emersion/go-kanshi/pkg/eventloop"
	"github.com/emersion/go-kanshi/pkg/hooks"
	"github.com/emersion/go-kanshi/pkg/ipc"
)

// Options configures the daemon, mirroring the "-p"/"-1" flags of spec §6.
type Options struct {
	ConfigPath    string
	ForcedProfile string
	OneShot       bool
	Debug         bool
	Version       string
	Commit        string
}

// App holds every live component of the running daemon.
type App struct {
	Log      *logrus.Entry
	Config   *config.Config
	Registry *compositor.Registry
	Engine   *engine.Engine
	Hooks    *hooks.Runner
	RPC      *ipc.Server
	Loop     *eventloop.Loop

	configPath string
	oneShot    bool
	exitCode   int
}

// New connects to the compositor, binds the output-management global,
// loads the config, starts the RPC server and assembles the event loop.
func New(log *logrus.Entry, opts Options) (*App, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving default config path: %w", err)
		}
		configPath = p
	}

	cfg, err := config.ParseFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config %q: %w", configPath, err)
	}

	display, err := wl.Connect("")
	if err != nil {
		return nil, fmt.Errorf("connecting to the Wayland compositor: %w", err)
	}

	manager, err := bindOutputManager(display)
	if err != nil {
		return nil, err
	}

	a := &App{
		Log:        log,
		Config:     cfg,
		configPath: configPath,
		oneShot:    opts.OneShot,
	}

	a.Registry, err = compositor.NewRegistry(manager, log)
	if err != nil {
		return nil, fmt.Errorf("setting up head registry: %w", err)
	}
	a.Hooks = hooks.NewRunner(log)
	a.Engine = &engine.Engine{
		Compositor:    a.Registry,
		Hooks:         a.Hooks,
		Log:           log,
		OneShot:       opts.OneShot,
		Exit:          a.setExit,
		ForcedProfile: opts.ForcedProfile,
	}

	a.RPC, err = ipc.Listen(log)
	if err != nil {
		return nil, fmt.Errorf("starting RPC service: %w", err)
	}

	a.Registry.Notify = func(snapshot compositor.Snapshot) {
		if err := a.Engine.Process(context.Background(), a.Config.Profiles, snapshot); err != nil {
			a.Log.WithError(err).Error("failed to apply matched profile")
		}
	}

	ctx := display.Context()
	a.Loop, err = eventloop.New(ctx, a.RPC, a.Registry.ReadyFD(), log, eventloop.Handlers{
		OnRPCCall:    a.handleRPCCall,
		OnReload:     func() { _ = a.reload() },
		OnHeadsReady: a.Registry.Drain,
	})
	if err != nil {
		return nil, fmt.Errorf("building event loop: %w", err)
	}

	return a, nil
}

// bindOutputManager walks the registry for zwlr_output_manager_v1 and
// binds it, per the standard wl_registry global-discovery handshake.
func bindOutputManager(display *wl.Display) (*outputmanagement.Manager, error) {
	registry, err := display.GetRegistry()
	if err != nil {
		return nil, fmt.Errorf("getting wl_registry: %w", err)
	}

	var manager *outputmanagement.Manager
	registry.SetGlobalHandler(func(ev wl.RegistryGlobalEvent) {
		if ev.Interface != "zwlr_output_manager_v1" {
			return
		}
		manager = outputmanagement.NewManager(display.Context())
		_ = registry.Bind(ev.Name, ev.Interface, ev.Version, manager)
	})

	callback, err := display.Sync()
	if err != nil {
		return nil, fmt.Errorf("syncing with compositor: %w", err)
	}
	done := make(chan struct{})
	callback.SetDoneHandler(func(uint32) { close(done) })

	for manager == nil {
		select {
		case <-done:
			if manager == nil {
				return nil, ipc.NewKindError(ipc.KindCompositorProtocolMissing, fmt.Errorf("compositor does not support wlr-output-management-unstable-v1"))
			}
		default:
			if err := display.Context().Dispatch(); err != nil {
				return nil, fmt.Errorf("dispatching registry events: %w", err)
			}
		}
	}
	return manager, nil
}

func (a *App) handleRPCCall(call *ipc.Call) {
	switch call.Method {
	case ipc.MethodReload:
		// Done only fires once the reconfigure attempt this reload
		// triggers has actually been submitted (spec §4.6), not merely
		// queued.
		call.Done(a.reload())
	case ipc.MethodSetProfile:
		a.Engine.ForcedProfile = call.Profile
		call.Done(nil)
	default:
		call.Done(fmt.Errorf("unknown method %q", call.Method))
	}
}

// reload implements spec §4.6's Reload and §8 scenario S6: reparse the
// config, drop current/pending, and re-run the matcher immediately against
// the last settled snapshot rather than waiting for a new Done event that
// may never come if nothing changed on the compositor side.
func (a *App) reload() error {
	cfg, err := config.ParseFile(a.configPath)
	if err != nil {
		a.Log.WithError(err).Error("failed to reload config, keeping the previous one")
		var parseErr *config.ParseError
		if errors.As(err, &parseErr) {
			return ipc.NewKindError(ipc.KindConfigSyntax, err)
		}
		return ipc.NewKindError(ipc.KindConfigIO, err)
	}
	if diff, err := config.Diff(a.Config, cfg); err == nil && diff != "" {
		a.Log.WithField("diff", diff).Debug("config changed on reload")
	}
	a.Config = cfg
	a.Engine.Reload()

	snap, ok := a.Registry.Latest()
	if !ok {
		return nil
	}
	return a.Engine.Process(context.Background(), a.Config.Profiles, snap)
}

func (a *App) setExit(code int) {
	a.exitCode = code
	a.Loop.Stop()
}

// Run drives the event loop until termination and returns the process
// exit status.
func (a *App) Run() int {
	code := a.Loop.Run()
	if a.oneShot && code == 0 {
		return a.exitCode
	}
	return code
}

// Close releases the RPC socket and stops the registry's coalescing timer.
func (a *App) Close() {
	if a.RPC != nil {
		a.RPC.Close()
	}
	if a.Registry != nil {
		a.Registry.Close()
	}
}
