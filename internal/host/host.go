// Where: internal/host/host.go
// What: In-process host: service document, plugin manager, schema, variables, providers.
// Why: The binary needs a host to drive the orchestrator without an external framework.
package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/ports"
	"github.com/hybridless/hybridless/internal/schema"
	"github.com/hybridless/hybridless/internal/template"
)

const (
	defaultStage  = "dev"
	defaultRegion = "us-east-1"
)

// Resolved before any other section.
var firstPhaseSections = []string{"service", "provider", "custom", "plugins"}

// Options configures a Host.
type Options struct {
	// ConfigPath defaults to serverless.yml in the working directory.
	ConfigPath string
	Stage      string
	Region     string
	Log        *logger.Logger
}

// Host implements ports.Host.
type Host struct {
	dir       string
	log       *logger.Logger
	service   *template.Service
	plugins   *PluginManager
	schema    *schema.Registry
	variables *Variables

	mu        sync.Mutex
	providers map[string]ports.Provider
}

// Load reads the service file. Variables stay unresolved until Populate.
func Load(opts Options) (*Host, error) {
	const op = "host.Load"
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = meta.ServiceFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, op, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, op, fmt.Errorf("read %s: %w", abs, err))
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, op, fmt.Errorf("parse %s: %w", abs, err))
	}
	return New(doc, filepath.Dir(abs), opts), nil
}

// New builds a host over an already parsed document rooted at dir.
func New(doc map[string]any, dir string, opts Options) *Host {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	doc = value.CopyMap(doc)
	if doc == nil {
		doc = map[string]any{}
	}
	provider := value.AsMap(doc["provider"])
	if provider == nil {
		provider = map[string]any{}
	}
	if opts.Stage != "" {
		provider["stage"] = opts.Stage
	}
	if opts.Region != "" {
		provider["region"] = opts.Region
	}
	doc["provider"] = provider

	service := template.NewService(doc)
	h := &Host{
		dir:       dir,
		log:       log,
		service:   service,
		plugins:   newPluginManager(service, log),
		schema:    schema.NewRegistry(),
		providers: map[string]ports.Provider{},
	}
	h.variables = newVariables(service, map[string]string{
		"stage":  opts.Stage,
		"region": opts.Region,
	})
	return h
}

// Register binds a plugin's commands, hooks and variable sources.
func (h *Host) Register(p ports.Plugin) {
	h.plugins.Register(p)
	for name, source := range p.VariableSources() {
		h.variables.AddSource(name, source)
	}
}

// Populate resolves variables in two phases, then fills provider defaults.
func (h *Host) Populate(ctx context.Context) error {
	for _, key := range firstPhaseSections {
		if err := h.variables.PopulateSection(ctx, key); err != nil {
			return err
		}
	}
	h.applyProviderDefaults()

	doc := h.service.Document()
	rest := make([]string, 0, len(doc))
	for key := range doc {
		if !isFirstPhase(key) {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := h.variables.PopulateSection(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) applyProviderDefaults() {
	provider := value.AsMap(h.service.Section("provider"))
	if provider == nil {
		provider = map[string]any{}
	}
	if value.AsString(provider["name"]) == "" {
		provider["name"] = meta.ProviderName
	}
	if value.AsString(provider["stage"]) == "" {
		provider["stage"] = defaultStage
	}
	if value.AsString(provider["region"]) == "" {
		provider["region"] = defaultRegion
	}
	h.service.SetSection("provider", provider)
}

func isFirstPhase(key string) bool {
	for _, first := range firstPhaseSections {
		if key == first {
			return true
		}
	}
	return false
}

// Dir is the service directory.
func (h *Host) Dir() string { return h.dir }

func (h *Host) Service() *template.Service { return h.service }

func (h *Host) PluginManager() ports.PluginManager { return h.plugins }

// Plugins exposes the concrete manager for command dispatch.
func (h *Host) Plugins() *PluginManager { return h.plugins }

func (h *Host) ConfigSchemaHandler() ports.ConfigSchemaHandler { return h.schema }

// Schema exposes the concrete registry.
func (h *Host) Schema() *schema.Registry { return h.schema }

func (h *Host) Variables() ports.VariablePopulator { return h.variables }

// SetProvider installs p under its name, replacing the default.
func (h *Host) SetProvider(p ports.Provider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.providers[p.Name()] = p
}

// Provider returns the named provider. `aws` is created on first use for
// the resolved region.
func (h *Host) Provider(name string) (ports.Provider, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.providers[name]; ok {
		return p, nil
	}
	if name != meta.ProviderName {
		return nil, errs.New(errs.NotFound, "host.Provider", "provider %q is not supported", name)
	}
	p := NewAWSProvider(h.service.Region())
	h.providers[name] = p
	return p, nil
}

// AWS returns the AWS provider, or nil when a non-AWS shim is installed.
func (h *Host) AWS() *AWSProvider {
	p, err := h.Provider(meta.ProviderName)
	if err != nil {
		return nil
	}
	aws, _ := p.(*AWSProvider)
	return aws
}
