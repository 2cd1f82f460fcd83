// Where: internal/plugin/commands.go
// What: Commands, lifecycle hooks, and variable sources registered with the host.
// Why: Host lifecycles reach the stages only through this table.
package plugin

import (
	"context"

	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/ports"
)

// Command names spawned by the host hooks.
const (
	CommandCreate    = meta.AppName + ":create"
	CommandPrebuild  = meta.AppName + ":prebuild"
	CommandBuild     = meta.AppName + ":build"
	CommandPush      = meta.AppName + ":push"
	CommandPredeploy = meta.AppName + ":predeploy"
	CommandCleanup   = meta.AppName + ":cleanup"
	CommandDelete    = meta.AppName + ":delete"
	CommandBuildAll  = meta.AppName + ":build-all"
)

// Commands lists the entry points and their ordered lifecycle events.
func (p *Plugin) Commands() []ports.Command {
	return []ports.Command{
		{Name: CommandCreate, Usage: "Set up functions, spread resources, check dependencies and create repositories", Lifecycle: []string{"setup", "spread", "checkDependencies", "createResources"}},
		{Name: CommandPrebuild, Usage: "Compile native code", Lifecycle: []string{"compile"}},
		{Name: CommandBuild, Usage: "Build container images", Lifecycle: []string{"build"}},
		{Name: CommandPush, Usage: "Push container images", Lifecycle: []string{"push"}},
		{Name: CommandPredeploy, Usage: "Compile cluster resources and update the execution role", Lifecycle: []string{"compileCloudFormation", "pack"}},
		{Name: CommandCleanup, Usage: "Remove stale images from the registry", Lifecycle: []string{"cleanupContainers"}},
		{Name: CommandDelete, Usage: "Delete every image repository", Lifecycle: []string{"setup", "delete"}},
		{Name: CommandBuildAll, Usage: "Run every stage up to the image build", Lifecycle: []string{"setup", "spread", "checkDependencies", "createResources", "compile", "build"}},
	}
}

// Hooks binds the command lifecycles to stages and the host lifecycles
// to command spawns.
func (p *Plugin) Hooks() map[string]ports.Hook {
	spawn := func(commands ...string) ports.Hook {
		return func(ctx context.Context) error {
			for _, command := range commands {
				if err := p.host.PluginManager().Spawn(ctx, command); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return map[string]ports.Hook{
		CommandCreate + ":setup":                    p.Setup,
		CommandCreate + ":spread":                   p.Spread,
		CommandCreate + ":checkDependencies":        p.CheckDependencies,
		CommandCreate + ":createResources":          p.CreateResources,
		CommandPrebuild + ":compile":                p.Compile,
		CommandBuild + ":build":                     p.Build,
		CommandPush + ":push":                       p.Push,
		CommandPredeploy + ":compileCloudFormation": p.CompileCloudFormation,
		CommandPredeploy + ":pack":                  p.ModifyExecutionRole,
		CommandCleanup + ":cleanupContainers":       p.CleanupContainers,
		CommandDelete + ":setup":                    p.Setup,
		CommandDelete + ":delete":                   p.Delete,
		CommandBuildAll + ":setup":                  p.Setup,
		CommandBuildAll + ":spread":                 p.Spread,
		CommandBuildAll + ":checkDependencies":      p.CheckDependencies,
		CommandBuildAll + ":createResources":        p.CreateResources,
		CommandBuildAll + ":compile":                p.Compile,
		CommandBuildAll + ":build":                  p.Build,

		"before:package:initialize":                spawn(CommandCreate),
		"before:package:createDeploymentArtifacts": spawn(CommandPrebuild),
		"package:createDeploymentArtifacts":        spawn(CommandBuild, CommandPush),
		"deploy:compileFunctions":                  spawn(CommandPredeploy),
		"package:compileFunctions":                 spawn(CommandPredeploy),
		"aws:deploy:finalize:cleanup":              spawn(CommandCleanup),
		"before:remove:remove":                     spawn(CommandDelete),
	}
}

// VariableSources exposes `${hybridless:resolveContainerAddress:...}`.
func (p *Plugin) VariableSources() map[string]ports.VariableSource {
	return map[string]ports.VariableSource{
		meta.VariableSource: ports.VariableSourceFunc(p.ResolveVariable),
	}
}
