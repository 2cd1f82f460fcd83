// Where: internal/host/plugins.go
// What: Command and hook dispatch for registered plugins.
// Why: Lifecycle names are the only coupling between the host and its plugins.
package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/ports"
	"github.com/hybridless/hybridless/internal/template"
)

// PluginManager implements ports.PluginManager.
type PluginManager struct {
	service *template.Service
	log     *logger.Logger

	mu       sync.Mutex
	commands map[string]ports.Command
	hooks    map[string][]ports.Hook
}

func newPluginManager(service *template.Service, log *logger.Logger) *PluginManager {
	return &PluginManager{
		service:  service,
		log:      log,
		commands: map[string]ports.Command{},
		hooks:    map[string][]ports.Hook{},
	}
}

// Register binds the commands and hooks of p. Hooks bound to the same
// lifecycle run in registration order.
func (m *PluginManager) Register(p ports.Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cmd := range p.Commands() {
		m.commands[cmd.Name] = cmd
	}
	hooks := p.Hooks()
	names := make([]string, 0, len(hooks))
	for name := range hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m.hooks[name] = append(m.hooks[name], hooks[name])
	}
}

// Commands lists registered commands sorted by name.
func (m *PluginManager) Commands() []ports.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.Command, 0, len(m.commands))
	for _, cmd := range m.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Spawn runs a registered command event by event, or the hooks bound to a
// single lifecycle name. Unbound names succeed.
func (m *PluginManager) Spawn(ctx context.Context, name string) error {
	m.mu.Lock()
	cmd, ok := m.commands[name]
	m.mu.Unlock()
	if !ok {
		return m.Run(ctx, name)
	}
	for _, event := range cmd.Lifecycle {
		if err := m.RunEvent(ctx, name+":"+event); err != nil {
			return err
		}
	}
	return nil
}

// RunEvent runs the before, main and after hooks of event.
func (m *PluginManager) RunEvent(ctx context.Context, event string) error {
	for _, name := range []string{"before:" + event, event, "after:" + event} {
		if err := m.run(ctx, name, false); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the hooks bound to exactly name.
func (m *PluginManager) Run(ctx context.Context, name string) error {
	return m.run(ctx, name, true)
}

func (m *PluginManager) run(ctx context.Context, name string, logUnbound bool) error {
	m.mu.Lock()
	hooks := append([]ports.Hook(nil), m.hooks[name]...)
	m.mu.Unlock()
	if len(hooks) == 0 {
		if logUnbound {
			m.log.Debug(fmt.Sprintf("No hooks bound to %s", name))
		}
		return nil
	}
	for _, hook := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// AddPlugin records ref in the service plugin list.
func (m *PluginManager) AddPlugin(_ context.Context, ref string) error {
	m.service.AddPlugin(ref)
	m.log.Debug(fmt.Sprintf("Attached plugin %s", ref))
	return nil
}

func (m *PluginManager) InstalledPlugins() []string {
	return m.service.Plugins()
}
