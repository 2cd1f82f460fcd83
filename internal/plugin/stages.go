// Where: internal/plugin/stages.go
// What: Lifecycle stages 1-9 and the delete path.
// Why: Each stage fails fast; only create, build, and push fan out.
package plugin

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/function"
	"github.com/hybridless/hybridless/internal/meta"
)

// Spread writes what every function synthesizes into the service document.
func (p *Plugin) Spread(ctx context.Context) error {
	p.log.Log("Spreading components...")
	if p.empty() {
		p.log.Warn("No components to be processed.")
		return nil
	}
	for _, fn := range p.Functions() {
		syn, err := fn.Spread(ctx)
		if err != nil {
			return err
		}
		p.write(syn)
	}
	return nil
}

func (p *Plugin) write(syn *function.Synthesis) {
	if syn == nil {
		return
	}
	svc := p.host.Service()
	if len(syn.Functions) > 0 {
		svc.AppendFunction(syn.Functions)
	}
	for key, resource := range syn.Resources {
		svc.AppendResource(key, resource)
	}
	if syn.Cluster != nil {
		svc.AppendECSCluster(syn.Cluster)
	}
}

// CheckDependencies collects capability flags, attaches missing plugins,
// and re-validates the service document.
func (p *Plugin) CheckDependencies(ctx context.Context) error {
	for _, img := range p.Images() {
		if err := img.CheckDependencies(ctx); err != nil {
			return err
		}
	}
	for _, fn := range p.Functions() {
		if err := fn.CheckDependencies(ctx); err != nil {
			return err
		}
	}
	if err := p.deps.Load(ctx, p.host.PluginManager()); err != nil {
		return err
	}
	return p.host.ConfigSchemaHandler().ValidateConfig(p.host.Service().ValidationDocument())
}

// CreateResources creates the registry repositories of every image owner.
func (p *Plugin) CreateResources(ctx context.Context) error {
	if p.empty() {
		p.log.Warn("No components to create resources for.")
		return nil
	}
	var g errgroup.Group
	for _, img := range p.Images() {
		g.Go(func() error { return img.CreateRequiredResources(ctx) })
	}
	for _, fn := range p.Functions() {
		g.Go(func() error { return fn.CreateRequiredResources(ctx) })
	}
	return g.Wait()
}

// Compile runs the native toolchains the configuration requires.
func (p *Plugin) Compile(ctx context.Context) error {
	return p.deps.Compile(ctx, p.cfg.Runner, p.cfg.ServiceDir)
}

func (p *Plugin) buildConcurrency() int {
	if p.options == nil || p.options.BuildConcurrency <= 0 {
		return constants.DefaultBuildConcurrency
	}
	return p.options.BuildConcurrency
}

// Build builds every enabled image. Top-level images share one bounded
// pool; each function bounds its own events.
func (p *Plugin) Build(ctx context.Context) error {
	if p.empty() {
		p.log.Warn("No components to build.")
		return nil
	}
	p.log.Log("Building components from functions...")
	var g errgroup.Group
	if images := p.Images(); len(images) > 0 {
		g.Go(func() error {
			var pool errgroup.Group
			pool.SetLimit(p.buildConcurrency())
			for _, img := range images {
				pool.Go(func() error { return img.Build(ctx) })
			}
			return pool.Wait()
		})
	}
	for _, fn := range p.Functions() {
		g.Go(func() error { return fn.Build(ctx) })
	}
	return g.Wait()
}

// Push tags and pushes every built image.
func (p *Plugin) Push(ctx context.Context) error {
	if p.empty() {
		p.log.Warn("No components to push.")
		return nil
	}
	p.log.Log("Pushing components from functions...")
	var g errgroup.Group
	for _, img := range p.Images() {
		g.Go(func() error { return img.Push(ctx) })
	}
	for _, fn := range p.Functions() {
		g.Go(func() error { return fn.Push(ctx) })
	}
	return g.Wait()
}

// CompileCloudFormation asks the ECS plugin to compile the cluster manifests.
func (p *Plugin) CompileCloudFormation(ctx context.Context) error {
	if !p.deps.IsECSRequired() {
		return nil
	}
	return p.host.PluginManager().Spawn(ctx, meta.ECSPluginCompileLifecycle)
}

// ModifyExecutionRole adds the ECS tasks principal and any configured
// service principals to the lambda execution role.
func (p *Plugin) ModifyExecutionRole(context.Context) error {
	const op = "plugin.ModifyExecutionRole"
	svc := p.host.Service()
	if p.deps.IsECSRequired() || p.deps.IsECSRolePermissionRequired() {
		found, _, err := svc.AddTrustPrincipal(meta.ExecutionRoleResource, meta.ECSTasksPrincipal)
		if err != nil {
			return errs.Wrap(errs.ConfigInvalid, op, err)
		}
		if !found {
			p.log.Warn(fmt.Sprintf("Could not find %s policy for appending trust relation with ECS. You probably dont have any lambda function and the role is not being created.", meta.ExecutionRoleResource))
		}
	}
	principals := svc.ServicesPrincipal()
	for _, principal := range principals {
		found, _, err := svc.AddTrustPrincipal(meta.ExecutionRoleResource, principal)
		if err != nil {
			return errs.Wrap(errs.ConfigInvalid, op, err)
		}
		if !found {
			p.log.Warn(fmt.Sprintf("Could not find %s policy for appending trust relation with additional specified services. You probably dont have any lambda function and the role is not being created.", meta.ExecutionRoleResource))
			break
		}
	}
	return nil
}

// CleanupContainers removes every remote image except the tag of this run.
func (p *Plugin) CleanupContainers(ctx context.Context) error {
	p.log.Log("Cleaning up functions...")
	for _, fn := range p.Functions() {
		if err := fn.Cleanup(ctx); err != nil {
			return err
		}
		if p.cfg.PruneLocal {
			if err := fn.PruneLocal(ctx); err != nil {
				return err
			}
		}
	}
	for _, img := range p.Images() {
		if err := img.Cleanup(ctx); err != nil {
			return err
		}
		if p.cfg.PruneLocal && img.Enabled() {
			if err := img.PruneLocal(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes the remote repository of every event and image.
func (p *Plugin) Delete(ctx context.Context) error {
	p.log.Log("Deleting components...")
	for _, fn := range p.Functions() {
		if err := fn.Delete(ctx); err != nil {
			return err
		}
	}
	for _, img := range p.Images() {
		if err := img.Delete(ctx); err != nil {
			return err
		}
	}
	return nil
}
