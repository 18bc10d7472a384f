// Package subprocs assembles the supervised child processes from the gateway
// configuration: the auth proxy and the HTTP proxy.
package subprocs

import (
	"fmt"
	"syscall"

	"github.com/fatih/color"

	"authgateway/internal/platform/config"
	"authgateway/internal/shutdown"
	"authgateway/internal/spawner"
)

// Procs holds the two children the gateway supervises.
type Procs struct {
	AuthProxy *spawner.Spawner
	HTTPProxy *spawner.Spawner
}

// Build wires both supervisors from the configuration. No process is started
// yet; call Spawn on each when the system is ready to run.
func Build(conf *config.Config, sh *shutdown.Manager) (*Procs, error) {
	auth, err := buildAuthProxy(conf, sh)
	if err != nil {
		return nil, err
	}
	httpProxy, err := buildHTTPProxy(conf, sh)
	if err != nil {
		return nil, err
	}
	return &Procs{AuthProxy: auth, HTTPProxy: httpProxy}, nil
}

// Spawn starts both children. The first start failure wins.
func (p *Procs) Spawn() error {
	if err := p.AuthProxy.Spawn(); err != nil {
		return err
	}
	return p.HTTPProxy.Spawn()
}

func buildAuthProxy(conf *config.Config, sh *shutdown.Manager) (*spawner.Spawner, error) {
	proc := conf.AuthProxy.Process
	sigs, err := parseSignals(conf.AuthProxy.Signals)
	if err != nil {
		return nil, fmt.Errorf("auth proxy: %w", err)
	}
	return spawner.New(proc.Name, proc.Command, sh, spawner.Options{
		Args:            proc.Args,
		StopSignal:      sigs.stop,
		ReloadSignal:    sigs.reload,
		LogrotateSignal: sigs.logrotate,
		MakeConfig:      func() (string, error) { return RenderAuthProxyConfig(conf) },
		ConfigFlag:      "--config",
		TagLine:         tagger(color.FgMagenta, "[-%s-] "),
		TagInformLine:   tagger(color.FgMagenta, "[=%s=] "),
	})
}

func buildHTTPProxy(conf *config.Config, sh *shutdown.Manager) (*spawner.Spawner, error) {
	proc := conf.HTTPProxy.Process
	sigs, err := parseSignals(conf.HTTPProxy.Signals)
	if err != nil {
		return nil, fmt.Errorf("http proxy: %w", err)
	}
	return spawner.New(proc.Name, proc.Command, sh, spawner.Options{
		Args:            proc.Args,
		StopSignal:      sigs.stop,
		ReloadSignal:    sigs.reload,
		LogrotateSignal: sigs.logrotate,
		MakeConfig:      func() (string, error) { return RenderHTTPProxyConfig(conf) },
		ConfigFlag:      "-c",
		TagLine:         tagger(color.FgBlue, "[-%s-] "),
		TagInformLine:   tagger(color.FgBlue, "[=%s=] "),
	})
}

type signalSet struct {
	stop, reload, logrotate syscall.Signal
}

func parseSignals(s config.Signals) (signalSet, error) {
	var (
		set signalSet
		err error
	)
	if set.stop, err = spawner.ParseSignal(s.Stop); err != nil {
		return set, err
	}
	if set.reload, err = spawner.ParseSignal(s.Reload); err != nil {
		return set, err
	}
	if set.logrotate, err = spawner.ParseSignal(s.Logrotate); err != nil {
		return set, err
	}
	return set, nil
}

// tagger builds a line prefix in the given color, so output from the two
// children is easy to tell apart on a shared console.
func tagger(attr color.Attribute, format string) spawner.Tagger {
	c := color.New(attr)
	return func(name string) string {
		return c.Sprintf(format, name)
	}
}
