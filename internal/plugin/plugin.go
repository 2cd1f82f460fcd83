// Where: internal/plugin/plugin.go
// What: The orchestrator that owns a run: options, functions, images, and dependency flags.
// Why: Stages share one state so later stages see what setup and spread produced.
package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/hybridless/hybridless/internal/deps"
	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/function"
	"github.com/hybridless/hybridless/internal/image"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/naming"
	"github.com/hybridless/hybridless/internal/options"
	"github.com/hybridless/hybridless/internal/ports"
	"github.com/hybridless/hybridless/internal/runner"
	"github.com/hybridless/hybridless/internal/schema"
)

// Config carries the collaborators that do not come from the host.
type Config struct {
	Builder image.Builder
	Runner  runner.CommandRunner
	// Ledger is optional.
	Ledger image.Recorder
	Log    *logger.Logger

	// ServiceDir is where user paths and toolchains are resolved from.
	ServiceDir  string
	StagingRoot string
	Now         func() time.Time
	// PruneLocal also removes local images during cleanup.
	PruneLocal bool
}

// Plugin is the orchestrator.
type Plugin struct {
	host ports.Host
	cfg  Config
	log  *logger.Logger
	deps *deps.Registry

	options   *options.Plugin
	provider  ports.Provider
	imageEnv  *image.Env
	fnEnv     *function.Env
	functions map[string]*function.Function
	fnOrder   []string
	images    map[string]*image.Shared
	imgOrder  []string
}

// New registers the options schema with the host and returns an
// orchestrator with empty state.
func New(host ports.Host, cfg Config) (*Plugin, error) {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	opts, err := schema.Options()
	if err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, "plugin.New", err)
	}
	if err := host.ConfigSchemaHandler().DefineTopLevelProperty(meta.AppName, opts); err != nil {
		return nil, err
	}
	p := &Plugin{
		host:      host,
		cfg:       cfg,
		log:       log,
		deps:      deps.New(log),
		functions: map[string]*function.Function{},
		images:    map[string]*image.Shared{},
	}
	p.imageEnv = &image.Env{
		Registry:  &lazyRegistry{plugin: p},
		Builder:   cfg.Builder,
		Runner:    cfg.Runner,
		Log:       log,
		Ledger:    cfg.Ledger,
		AccountID: p.accountID,
		Now:       cfg.Now,
	}
	p.fnEnv = &function.Env{
		Images:      p.imageEnv,
		Deps:        p.deps,
		Log:         log,
		ServiceDir:  cfg.ServiceDir,
		StagingRoot: cfg.StagingRoot,
		SharedImage: p.sharedImage,
	}
	return p, nil
}

// Deps exposes the dependency flags collected so far.
func (p *Plugin) Deps() *deps.Registry { return p.deps }

// Options returns the options decoded by the last setup, or nil.
func (p *Plugin) Options() *options.Plugin { return p.options }

// Function returns the aggregate for a configured function name.
func (p *Plugin) Function(name string) (*function.Function, bool) {
	fn, ok := p.functions[name]
	return fn, ok
}

// Functions returns every aggregate in the order it was first configured.
func (p *Plugin) Functions() []*function.Function {
	out := make([]*function.Function, 0, len(p.fnOrder))
	for _, name := range p.fnOrder {
		out = append(out, p.functions[name])
	}
	return out
}

// Images returns every top-level image in the order it was first configured.
func (p *Plugin) Images() []*image.Shared {
	out := make([]*image.Shared, 0, len(p.imgOrder))
	for _, id := range p.imgOrder {
		out = append(out, p.images[id])
	}
	return out
}

func (p *Plugin) sharedImage(id string) (*image.Shared, bool) {
	img, ok := p.images[id]
	return img, ok
}

// empty reports a run with nothing to process.
func (p *Plugin) empty() bool {
	return p.options == nil || (len(p.functions) == 0 && len(p.images) == 0)
}

func (p *Plugin) accountID(ctx context.Context) (string, error) {
	if p.provider == nil {
		return "", fmt.Errorf("provider %s is not resolved", meta.ProviderName)
	}
	return p.provider.AccountID(ctx)
}

// Setup reads the hybridless section, resolves its variables, and creates
// or refreshes functions and images. It may run more than once; existing
// aggregates keep their images and tags.
func (p *Plugin) Setup(ctx context.Context) error {
	const op = "plugin.Setup"
	if p.options == nil {
		p.log.Log("Setting up plugin...")
	} else {
		p.log.Log("Refreshing plugin options...")
	}
	svc := p.host.Service()
	raw := value.AsMap(svc.Section(meta.AppName))
	if raw == nil {
		raw = map[string]any{}
	}
	if vars := p.host.Variables(); vars != nil {
		populated, err := vars.PopulateObject(ctx, raw)
		if err != nil {
			return errs.Wrap(errs.ConfigInvalid, op, err)
		}
		raw = populated
	}
	opts, err := options.Decode(options.Normalize(raw))
	if err != nil {
		return err
	}
	provider, err := p.host.Provider(meta.ProviderName)
	if err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	p.provider = provider
	p.options = opts

	name := svc.Name()
	stage := svc.Stage()
	p.imageEnv.Service = naming.Logical(name)
	p.imageEnv.Stage = stage
	p.imageEnv.Region = svc.Region()
	p.imageEnv.Tags = opts.Tags
	p.fnEnv.Service = name
	p.fnEnv.Stage = stage
	p.fnEnv.DisableWebpack = opts.DisableWebpack
	p.fnEnv.BuildConcurrency = opts.BuildConcurrency
	p.fnEnv.Tags = opts.Tags
	p.fnEnv.ProviderEnvironment = svc.ProviderEnvironment()

	for _, id := range opts.ImageIDs() {
		spec := opts.Images[id]
		if spec == nil {
			p.log.Warn(fmt.Sprintf("Skipping image %s, resource is invalid!", id))
			continue
		}
		if existing, ok := p.images[id]; ok {
			existing.Update(spec)
			continue
		}
		p.images[id] = image.NewShared(p.imageEnv, id, spec, p.cfg.ServiceDir)
		p.imgOrder = append(p.imgOrder, id)
	}
	for _, fnName := range opts.FunctionNames() {
		spec := opts.Functions[fnName]
		if spec == nil {
			p.log.Warn(fmt.Sprintf("Skipping function %s, resource is invalid!", fnName))
			continue
		}
		if existing, ok := p.functions[fnName]; ok {
			if err := existing.Update(spec); err != nil {
				return errs.Wrap(errs.ConfigInvalid, op, err)
			}
			continue
		}
		fn, err := function.New(p.fnEnv, fnName, spec)
		if err != nil {
			return errs.Wrap(errs.ConfigInvalid, op, err)
		}
		p.functions[fnName] = fn
		p.fnOrder = append(p.fnOrder, fnName)
	}
	return nil
}
