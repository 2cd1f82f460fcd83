// Where: internal/function/launchable.go
// What: Launchable task event: a task definition started on demand by callers.
// Why: On-demand tasks need placement and capacity settings but no service capacity.
package function

import (
	"context"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/dockerfiles"
	"github.com/hybridless/hybridless/internal/options"
)

type launchable struct {
	*container
	spec *options.LaunchableTaskEvent
}

func newLaunchable(fn *scope, shared *sharedState, spec *options.LaunchableTaskEvent, index int) (Event, error) {
	e := &launchable{spec: spec}
	e.container = newContainer(fn, shared, dockerfiles.KindLaunchable, &spec.BaseEvent, &spec.ContainerSpec, index)
	return e, nil
}

func (e *launchable) Type() options.EventType { return options.EventLaunchableTask }

func (e *launchable) update(spec options.EventSpec) bool {
	typed, ok := spec.(*options.LaunchableTaskEvent)
	if !ok || !e.setSpec(&typed.BaseEvent, &typed.ContainerSpec) {
		return false
	}
	e.spec = typed
	return true
}

func (e *launchable) Spread(context.Context) (*Synthesis, error) { return nil, nil }

func (e *launchable) CheckDependencies(context.Context) error {
	e.checkDependencies(true, false)
	return nil
}

func (e *launchable) projection() map[string]any {
	entry, fn := e.entrypoint()
	env := map[string]any{
		constants.EnvHybridlessRuntime: true,
		constants.EnvEntrypoint:        entry,
		constants.EnvEntrypointFunc:    fn,
		constants.EnvStage:             e.fn.env.Stage,
	}
	e.nodeReuse(env)
	e.newRelic(e.spec.NewRelicKey, env)
	cloudRefs(env)
	return env
}

func (e *launchable) ClusterTask(ctx context.Context) (map[string]any, error) {
	url, err := e.ImageURL(ctx)
	if err != nil {
		return nil, err
	}
	spec := e.spec
	task := map[string]any{
		"name":          e.taskName(),
		"cpu":           taskCPU(&spec.TaskSpec),
		"memory":        e.taskMemory(),
		"ec2LaunchType": spec.EC2LaunchType,
		"taskRoleArn":   e.taskRole(),
		"image":         url,
		"desiredCount":  0,
		"environment":   e.environment(e.projection()),

		"logsMultilinePattern": multilinePattern(spec.LogsMultilinePattern),
	}
	if spec.EC2LaunchType && spec.DaemonType {
		task["daemonEc2Type"] = false
	}
	if !spec.EC2LaunchType {
		task["disablePublicIPAssign"] = true
	}
	setIfPresent(task, "entrypoint", spec.Entrypoint)
	setIfPresent(task, "placementStrategies", spec.PlacementStrategies)
	setIfPresent(task, "placementConstraints", spec.PlacementConstraints)
	setIfPresent(task, "capacityProviderStrategy", spec.CapacityProviderStrategy)
	setIfPresent(task, "propagateTags", spec.PropagateTags)
	if spec.LogsRetentionInDays > 0 {
		task["logsRetentionInDays"] = spec.LogsRetentionInDays
	}
	return task, nil
}
