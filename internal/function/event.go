// Where: internal/function/event.go
// What: Event lifecycle contract, synthesis descriptors, and variant dispatch.
// Why: Each eventType is a variant behind one capability set; containers add image capabilities.
package function

import (
	"context"
	"fmt"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/naming"
	"github.com/hybridless/hybridless/internal/options"
)

// Event is one declared trigger of a function.
type Event interface {
	Index() int
	Type() options.EventType
	Enabled() bool
	Spread(ctx context.Context) (*Synthesis, error)
	CheckDependencies(ctx context.Context) error
	CreateRequiredResources(ctx context.Context) error
	Build(ctx context.Context) error
	Push(ctx context.Context) error
	Cleanup(ctx context.Context) error
	Delete(ctx context.Context) error

	update(spec options.EventSpec) bool
}

// ContainerEvent is an event backed by an image.
type ContainerEvent interface {
	Event
	ImageURL(ctx context.Context) (string, error)
	// PruneLocal removes the local copies of the image built in this run.
	PruneLocal(ctx context.Context) error
}

// ClusterTasker contributes a service to the function's cluster manifest.
type ClusterTasker interface {
	ClusterTask(ctx context.Context) (map[string]any, error)
}

// Synthesis is what an event or function adds to the service document.
type Synthesis struct {
	Functions map[string]any
	Resources map[string]any
	Cluster   map[string]any
	task      map[string]any
}

func (s *Synthesis) addFunction(key string, def map[string]any) {
	if s.Functions == nil {
		s.Functions = map[string]any{}
	}
	s.Functions[key] = def
}

func (s *Synthesis) addResource(key string, res map[string]any) {
	if s.Resources == nil {
		s.Resources = map[string]any{}
	}
	s.Resources[key] = res
}

func (s *Synthesis) merge(other *Synthesis) {
	if other == nil {
		return
	}
	for k, v := range other.Functions {
		s.addFunction(k, v.(map[string]any))
	}
	for k, v := range other.Resources {
		s.addResource(k, v.(map[string]any))
	}
}

// scope is the function an event belongs to. Functions own it and
// replace spec in place when options are refreshed.
type scope struct {
	env  *Env
	name string
	spec *options.Function
}

// key is the logical function name, e.g. "Api" for "api".
func (s *scope) key() string { return naming.Logical(s.name) }

func (s *scope) handler(event *options.BaseEvent) string {
	if event.Handler != "" {
		return event.Handler
	}
	return s.spec.Handler
}

// lambdaKey is `{service}{Function}{stage}`.
func (s *scope) lambdaKey() string {
	return fmt.Sprintf("%s%s%s", s.env.ServiceKey(), s.key(), s.env.Stage)
}

// lambdaName is `{service}-{Function}-{stage}`.
func (s *scope) lambdaName() string {
	return fmt.Sprintf("%s-%s-%s", s.env.ServiceKey(), s.key(), s.env.Stage)
}

func (s *scope) timeout() int {
	if s.spec.Timeout > 0 {
		return s.spec.Timeout
	}
	return constants.DefaultTimeout
}

func newEvent(fn *scope, shared *sharedState, spec options.EventSpec, index int) (Event, error) {
	switch typed := spec.(type) {
	case *options.HTTPDEvent:
		return newHTTPD(fn, shared, typed, index)
	case *options.ProcessEvent:
		return newProcess(fn, shared, typed, index)
	case *options.ScheduledTaskEvent:
		return newScheduled(fn, shared, typed, index)
	case *options.LaunchableTaskEvent:
		return newLaunchable(fn, shared, typed, index)
	case *options.LambdaEvent:
		return newLambda(fn, typed, index), nil
	case *options.LambdaContainerEvent:
		return newLambdaContainer(fn, shared, typed, index)
	case *options.JobEvent:
		return newJob(fn, shared, typed, index)
	}
	return nil, errs.New(errs.ConfigInvalid, "function.newEvent", "unknown event type %T", spec)
}
