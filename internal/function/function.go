// Where: internal/function/function.go
// What: Function aggregate: parses events and fans lifecycle stages out to them.
// Why: Cluster rollup and per-stage concurrency are decided per function, not per event.
package function

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/options"
)

// Function is one configured application component and its events.
type Function struct {
	scope  *scope
	shared *sharedState
	events []Event
}

// New parses the events of spec. Unknown event shapes are configuration errors.
func New(env *Env, name string, spec *options.Function) (*Function, error) {
	f := &Function{scope: &scope{env: env, name: name, spec: spec}}
	if err := f.parse(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Function) parse() error {
	f.shared = &sharedState{unified: f.scope.spec.UnifiedEventsContainer}
	events := make([]Event, 0, len(f.scope.spec.Events))
	for idx, spec := range f.scope.spec.Events {
		ev, err := newEvent(f.scope, f.shared, spec, idx)
		if err != nil {
			return fmt.Errorf("function %s event %d: %w", f.scope.name, idx, err)
		}
		events = append(events, ev)
	}
	f.events = events
	return nil
}

// Name returns the configured (raw) function name.
func (f *Function) Name() string { return f.scope.name }

// Spec returns the current options.
func (f *Function) Spec() *options.Function { return f.scope.spec }

// Events returns every event in declaration order, enabled or not.
func (f *Function) Events() []Event { return f.events }

// Update swaps in refreshed options. Events keep their images (and tags)
// when the event list keeps its shape; otherwise events are parsed again.
func (f *Function) Update(spec *options.Function) error {
	sameShape := len(spec.Events) == len(f.events) &&
		spec.UnifiedEventsContainer == f.scope.spec.UnifiedEventsContainer
	f.scope.spec = spec
	if sameShape {
		for i, ev := range f.events {
			if !ev.update(spec.Events[i]) {
				sameShape = false
				break
			}
		}
	}
	if sameShape {
		return nil
	}
	return f.parse()
}

// ContainerEvent returns the image-backed event at index.
func (f *Function) ContainerEvent(index int) (ContainerEvent, error) {
	if index < 0 || index >= len(f.events) {
		return nil, errs.New(errs.NotFound, "function.ContainerEvent", "function %s has no event at index %d", f.scope.name, index)
	}
	ev, ok := f.events[index].(ContainerEvent)
	if !ok {
		return nil, errs.New(errs.ConfigInvalid, "function.ContainerEvent", "event %d of %s is not container based", index, f.scope.name)
	}
	return ev, nil
}

// FirstContainerEvent returns the first image-backed event.
func (f *Function) FirstContainerEvent() (ContainerEvent, bool) {
	for _, ev := range f.events {
		if c, ok := ev.(ContainerEvent); ok {
			return c, true
		}
	}
	return nil, false
}

func (f *Function) enabled() []Event {
	out := make([]Event, 0, len(f.events))
	for _, ev := range f.events {
		if ev.Enabled() {
			out = append(out, ev)
		}
	}
	return out
}

func (f *Function) label(ev Event) string {
	return fmt.Sprintf("%s:%s", f.scope.name, ev.Type())
}

// Spread collects what every enabled event synthesizes. A cluster
// manifest is added when at least one event contributes a task.
func (f *Function) Spread(ctx context.Context) (*Synthesis, error) {
	log := f.scope.env.logger()
	out := &Synthesis{}
	var tasks []any
	for _, ev := range f.enabled() {
		log.Log(fmt.Sprintf("Spreading event %s...", f.label(ev)))
		syn, err := ev.Spread(ctx)
		if err != nil {
			return nil, err
		}
		out.merge(syn)
		tasker, ok := ev.(ClusterTasker)
		if !ok {
			continue
		}
		task, err := tasker.ClusterTask(ctx)
		if err != nil {
			return nil, err
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	if len(tasks) > 0 {
		out.Cluster = f.cluster(tasks)
	}
	return out, nil
}

func (f *Function) cluster(tasks []any) map[string]any {
	spec := f.scope.spec
	needsALB := false
	for _, ev := range f.events {
		if ev.Type() == options.EventHTTPD {
			needsALB = true
		}
	}
	tags := map[string]any{}
	for k, v := range f.scope.env.Tags {
		tags[k] = v
	}
	for k, v := range spec.Tags {
		tags[k] = v
	}
	extra := spec.ALBAdditionalTimeout
	if extra <= 0 {
		extra = constants.DefaultLoadBalancerExtraTime
	}
	out := map[string]any{
		"clusterName": f.scope.key(),
		"tags":        tags,
		"services":    tasks,
		"albPrivate":  spec.ALBIsPrivate,
		"albDisabled": !needsALB,
		"timeout":     f.scope.timeout() + extra,
	}
	if spec.EnableContainerInsights {
		out["enableContainerInsights"] = true
	}
	if value.IsSet(spec.ECSClusterArn) && value.IsSet(spec.ECSIngressSecGroupID) {
		out["clusterArns"] = map[string]any{
			"ecsClusterArn":        spec.ECSClusterArn,
			"ecsIngressSecGroupId": spec.ECSIngressSecGroupID,
		}
	}
	for k, v := range f.scope.vpcBlock(false) {
		out[k] = v
	}
	if value.IsSet(spec.ALBListenerArn) {
		out["albListenerArn"] = spec.ALBListenerArn
	}
	return out
}

// CheckDependencies lets every enabled event signal its capabilities.
func (f *Function) CheckDependencies(ctx context.Context) error {
	for _, ev := range f.enabled() {
		if err := ev.CheckDependencies(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CreateRequiredResources runs every enabled event concurrently.
func (f *Function) CreateRequiredResources(ctx context.Context) error {
	var g errgroup.Group
	for _, ev := range f.enabled() {
		g.Go(func() error { return ev.CreateRequiredResources(ctx) })
	}
	return g.Wait()
}

// Build runs at most BuildConcurrency event builds at a time.
func (f *Function) Build(ctx context.Context) error {
	log := f.scope.env.logger()
	limit := f.scope.env.BuildConcurrency
	if limit <= 0 {
		limit = constants.DefaultBuildConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, ev := range f.enabled() {
		log.Log(fmt.Sprintf("Building event %s...", f.label(ev)))
		g.Go(func() error { return ev.Build(ctx) })
	}
	return g.Wait()
}

// Push runs every enabled event push concurrently.
func (f *Function) Push(ctx context.Context) error {
	log := f.scope.env.logger()
	var g errgroup.Group
	for _, ev := range f.enabled() {
		log.Log(fmt.Sprintf("Pushing event %s...", f.label(ev)))
		g.Go(func() error { return ev.Push(ctx) })
	}
	return g.Wait()
}

// Cleanup removes stale remote images of every enabled event.
func (f *Function) Cleanup(ctx context.Context) error {
	log := f.scope.env.logger()
	for _, ev := range f.enabled() {
		log.Log(fmt.Sprintf("Cleaning up %s...", f.label(ev)))
		if err := ev.Cleanup(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PruneLocal removes local images built by enabled container events.
func (f *Function) PruneLocal(ctx context.Context) error {
	for _, ev := range f.enabled() {
		c, ok := ev.(ContainerEvent)
		if !ok {
			continue
		}
		if err := c.PruneLocal(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the repositories of every event, enabled or not.
func (f *Function) Delete(ctx context.Context) error {
	log := f.scope.env.logger()
	for _, ev := range f.events {
		log.Log(fmt.Sprintf("Deleting %s...", f.label(ev)))
		if err := ev.Delete(ctx); err != nil {
			return err
		}
	}
	return nil
}
