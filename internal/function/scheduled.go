// Where: internal/function/scheduled.go
// What: Scheduled task event: a task started by a rate or cron rule.
// Why: Scheduled work reuses the function cluster with zero standing capacity.
package function

import (
	"context"

	"github.com/hybridless/hybridless/internal/dockerfiles"
	"github.com/hybridless/hybridless/internal/options"
)

type scheduled struct {
	*container
	spec *options.ScheduledTaskEvent
}

func newScheduled(fn *scope, shared *sharedState, spec *options.ScheduledTaskEvent, index int) (Event, error) {
	e := &scheduled{spec: spec}
	e.container = newContainer(fn, shared, dockerfiles.KindScheduled, &spec.BaseEvent, &spec.ContainerSpec, index)
	return e, nil
}

func (e *scheduled) Type() options.EventType { return options.EventScheduledTask }

func (e *scheduled) update(spec options.EventSpec) bool {
	typed, ok := spec.(*options.ScheduledTaskEvent)
	if !ok || !e.setSpec(&typed.BaseEvent, &typed.ContainerSpec) {
		return false
	}
	e.spec = typed
	return true
}

func (e *scheduled) Spread(context.Context) (*Synthesis, error) { return nil, nil }

func (e *scheduled) CheckDependencies(context.Context) error {
	e.checkDependencies(true, false)
	return nil
}

func (e *scheduled) ClusterTask(ctx context.Context) (map[string]any, error) {
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
		// started by the rule only
		"desiredCount": 0,
		"environment":  e.environment(e.workerEnvironment(spec.NewRelicKey)),

		"logsMultilinePattern": multilinePattern(spec.LogsMultilinePattern),
		"schedulerRate":        spec.SchedulerRate,
		"schedulerConcurrency": taskConcurrency(&spec.TaskSpec),
	}
	if spec.EC2LaunchType && spec.DaemonType {
		task["daemonEc2Type"] = true
	}
	setIfPresent(task, "entrypoint", spec.Entrypoint)
	setIfPresent(task, "schedulerInput", spec.SchedulerInput)
	return task, nil
}
