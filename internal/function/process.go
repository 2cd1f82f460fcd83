// Where: internal/function/process.go
// What: Process event: a long-running worker task without a load balancer.
// Why: Workers run in the function cluster next to its HTTP services.
package function

import (
	"context"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/dockerfiles"
	"github.com/hybridless/hybridless/internal/options"
)

type process struct {
	*container
	spec *options.ProcessEvent
}

func newProcess(fn *scope, shared *sharedState, spec *options.ProcessEvent, index int) (Event, error) {
	e := &process{spec: spec}
	e.container = newContainer(fn, shared, dockerfiles.KindProcess, &spec.BaseEvent, &spec.ContainerSpec, index)
	return e, nil
}

func (e *process) Type() options.EventType { return options.EventProcess }

func (e *process) update(spec options.EventSpec) bool {
	typed, ok := spec.(*options.ProcessEvent)
	if !ok || !e.setSpec(&typed.BaseEvent, &typed.ContainerSpec) {
		return false
	}
	e.spec = typed
	return true
}

func (e *process) Spread(context.Context) (*Synthesis, error) { return nil, nil }

func (e *process) CheckDependencies(context.Context) error {
	e.checkDependencies(true, false)
	return nil
}

// workerEnvironment is shared by process and scheduled tasks.
func (c *container) workerEnvironment(newRelicKey string) map[string]any {
	entry, fn := c.entrypoint()
	env := map[string]any{
		constants.EnvEntrypoint:          entry,
		constants.EnvEntrypointFunc:      fn,
		constants.EnvNodeConnectionReuse: 1,
	}
	c.newRelic(newRelicKey, env)
	return env
}

func (e *process) ClusterTask(ctx context.Context) (map[string]any, error) {
	url, err := e.ImageURL(ctx)
	if err != nil {
		return nil, err
	}
	spec := e.spec
	task := map[string]any{
		"name":          e.taskName(),
		"cpu":           taskCPU(&spec.TaskSpec),
		"memory":        e.taskMemory(),
		"disableELB":    true,
		"ec2LaunchType": spec.EC2LaunchType,
		"taskRoleArn":   e.taskRole(),
		"image":         url,
		"desiredCount":  taskConcurrency(&spec.TaskSpec),
		"environment":   e.environment(e.workerEnvironment(spec.NewRelicKey)),

		"logsMultilinePattern": multilinePattern(spec.LogsMultilinePattern),
	}
	setIfPresent(task, "autoScale", spec.AutoScale)
	return task, nil
}
