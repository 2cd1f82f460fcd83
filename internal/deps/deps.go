// Where: internal/deps/deps.go
// What: Capability flags signalled by events and the auxiliary plugins they pull in.
// Why: Toolchains and host plugins are only enabled when some configured event needs them.
package deps

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/runner"
)

// Flag is a single capability.
type Flag int

const (
	Webpack Flag = iota
	LogsRetention
	ProvisionedConcurrency
	ECS
	ECSRolePermission
	Maven
	Go
	flagCount
)

func (f Flag) String() string {
	switch f {
	case Webpack:
		return "webpack"
	case LogsRetention:
		return "logs-retention"
	case ProvisionedConcurrency:
		return "provisioned-concurrency-autoscaling"
	case ECS:
		return "ecs"
	case ECSRolePermission:
		return "ecs-role-permission"
	case Maven:
		return "maven"
	case Go:
		return "go"
	}
	return "unknown"
}

// plugin each flag requires from the host, if any.
var pluginFor = map[Flag]string{
	Webpack:                meta.PluginWebpack,
	ECS:                    meta.PluginECS,
	LogsRetention:          meta.PluginLogsRetention,
	ProvisionedConcurrency: meta.PluginProvisionedConcurrency,
}

// PluginHost is the part of the host plugin manager used by Load.
type PluginHost interface {
	InstalledPlugins() []string
	AddPlugin(ctx context.Context, ref string) error
}

// Registry aggregates flags. Enabling is monotonic.
type Registry struct {
	mu    sync.Mutex
	flags [flagCount]bool
	log   *logger.Logger
}

// New returns a registry with every flag off.
func New(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{log: log}
}

// Enable turns flag on. Calling it again has no effect.
func (r *Registry) Enable(flag Flag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[flag] = true
}

// Enabled reports whether flag was turned on.
func (r *Registry) Enabled(flag Flag) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags[flag]
}

func (r *Registry) EnableWebpack()                { r.Enable(Webpack) }
func (r *Registry) EnableLogsRetention()          { r.Enable(LogsRetention) }
func (r *Registry) EnableProvisionedConcurrency() { r.Enable(ProvisionedConcurrency) }
func (r *Registry) EnableECS()                    { r.Enable(ECS) }
func (r *Registry) EnableECSRolePermission()      { r.Enable(ECSRolePermission) }
func (r *Registry) EnableMaven()                  { r.Enable(Maven) }
func (r *Registry) EnableGo()                     { r.Enable(Go) }

func (r *Registry) IsWebpackRequired() bool { return r.Enabled(Webpack) }

// IsLogsRetentionRequired reads the logs-retention flag.
func (r *Registry) IsLogsRetentionRequired() bool {
	return r.Enabled(LogsRetention)
}

func (r *Registry) IsProvisionedConcurrencyRequired() bool { return r.Enabled(ProvisionedConcurrency) }
func (r *Registry) IsECSRequired() bool                    { return r.Enabled(ECS) }
func (r *Registry) IsECSRolePermissionRequired() bool      { return r.Enabled(ECSRolePermission) }
func (r *Registry) IsMavenRequired() bool                  { return r.Enabled(Maven) }
func (r *Registry) IsGoRequired() bool                     { return r.Enabled(Go) }

// Required lists the enabled flags in declaration order.
func (r *Registry) Required() []Flag {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Flag{}
	for flag, on := range r.flags {
		if on {
			out = append(out, Flag(flag))
		}
	}
	return out
}

// Load attaches every plugin required by an enabled flag that the host
// does not already list.
func (r *Registry) Load(ctx context.Context, host PluginHost) error {
	installed := host.InstalledPlugins()
	for _, flag := range r.Required() {
		ref, ok := pluginFor[flag]
		if !ok || slices.Contains(installed, ref) {
			continue
		}
		r.log.Debug("Loading dependency plugin", ref)
		if err := host.AddPlugin(ctx, ref); err != nil {
			return errs.Wrap(errs.ExternalUnavailable, "deps.Load", fmt.Errorf("add plugin %s: %w", ref, err))
		}
		installed = append(installed, ref)
	}
	return nil
}

// Compile runs the native toolchains required by the enabled flags from dir.
func (r *Registry) Compile(ctx context.Context, run runner.CommandRunner, dir string) error {
	if r.IsMavenRequired() {
		if err := r.compileWith(ctx, run, dir, "Maven", constants.MavenCompileCommand); err != nil {
			return err
		}
	}
	if r.IsGoRequired() {
		if err := r.compileWith(ctx, run, dir, "Go", constants.GoCompileCommand); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) compileWith(ctx context.Context, run runner.CommandRunner, dir, label, script string) error {
	const op = "deps.Compile"
	r.log.Info("Compiling " + label + " code..")
	out, err := run.RunShell(ctx, dir, script)
	if err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	// The toolchains print warnings to stderr, so the exit code alone is not used.
	if ContainsError(out.Stderr) {
		r.log.Error(label + " compilation failed!")
		return errs.New(errs.BuildFailure, op, "%s compilation error: %s", label, out.Stderr)
	}
	r.log.Info(label + " code compiled!")
	return nil
}

// ContainsError reports whether any line of output mentions "error" in any case.
func ContainsError(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(strings.ToLower(line), "error") {
			return true
		}
	}
	return false
}
