// Where: internal/ports/host.go
// What: Host collaborator contracts consumed by the orchestrator.
// Why: The orchestrator drives stages without knowing which harness hosts it.
package ports

import (
	"context"

	"github.com/hybridless/hybridless/internal/registry"
	"github.com/hybridless/hybridless/internal/template"
)

// PluginManager runs named lifecycles and attaches auxiliary plugins.
type PluginManager interface {
	// Spawn runs a command (`hybridless:create`) or a single lifecycle.
	Spawn(ctx context.Context, name string) error
	AddPlugin(ctx context.Context, ref string) error
	InstalledPlugins() []string
}

// ConfigSchemaHandler validates the in-memory service document.
type ConfigSchemaHandler interface {
	DefineTopLevelProperty(name string, schema map[string]any) error
	ValidateConfig(doc map[string]any) error
}

// VariablePopulator resolves variable references inside a raw section.
type VariablePopulator interface {
	PopulateObject(ctx context.Context, raw map[string]any) (map[string]any, error)
}

// VariableSource resolves `${<source>:<address>}` references. The result
// is either a `{"value": ...}` mapping or a plain message.
type VariableSource interface {
	Resolve(ctx context.Context, address string) (any, error)
}

// VariableSourceFunc adapts a function to VariableSource.
type VariableSourceFunc func(ctx context.Context, address string) (any, error)

func (f VariableSourceFunc) Resolve(ctx context.Context, address string) (any, error) {
	return f(ctx, address)
}

// Provider is the cloud provider shim.
type Provider interface {
	Name() string
	Registry(ctx context.Context) (registry.API, error)
	AccountID(ctx context.Context) (string, error)
}

// Host is everything the orchestrator reads from or writes to its host.
type Host interface {
	Service() *template.Service
	PluginManager() PluginManager
	ConfigSchemaHandler() ConfigSchemaHandler
	// Variables is nil when the host resolves variables before plugins run.
	Variables() VariablePopulator
	Provider(name string) (Provider, error)
}
