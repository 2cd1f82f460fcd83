// Where: internal/function/job.go
// What: Batch job event: a job definition plus its log group.
// Why: Jobs run the function image on AWS Batch instead of the function cluster.
package function

import (
	"context"
	"fmt"
	"sort"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/dockerfiles"
	"github.com/hybridless/hybridless/internal/options"
)

type job struct {
	*container
	spec *options.JobEvent
}

func newJob(fn *scope, shared *sharedState, spec *options.JobEvent, index int) (Event, error) {
	e := &job{spec: spec}
	e.container = newContainer(fn, shared, dockerfiles.KindJob, &spec.BaseEvent, &spec.ContainerSpec, index)
	return e, nil
}

func (e *job) Type() options.EventType { return options.EventJob }

func (e *job) update(spec options.EventSpec) bool {
	typed, ok := spec.(*options.JobEvent)
	if !ok || !e.setSpec(&typed.BaseEvent, &typed.ContainerSpec) {
		return false
	}
	e.spec = typed
	return true
}

func (e *job) CheckDependencies(context.Context) error {
	e.checkDependencies(false, true)
	if e.spec.LogsRetentionInDays > 0 {
		e.fn.env.Deps.EnableLogsRetention()
	}
	return nil
}

// jobKey is `{service}{Function}{stage}{index}`; index 0 is omitted.
func (e *job) jobKey(suffix string) string {
	idx := ""
	if e.index > 0 {
		idx = fmt.Sprint(e.index)
	}
	return e.fn.lambdaKey() + idx + suffix
}

func (e *job) logGroupName() string {
	return fmt.Sprintf("/aws/batch/job/%s%s/%s/%d", e.fn.env.ServiceKey(), e.fn.key(), e.fn.env.Stage, e.index)
}

// timeout prefers the event; zero means unset.
func (e *job) timeout() int {
	if e.spec.Timeout > 0 {
		return e.spec.Timeout
	}
	return e.fn.spec.Timeout
}

func (e *job) projection() map[string]any {
	entry, fn := e.entrypoint()
	env := map[string]any{
		constants.EnvHybridlessRuntime:    true,
		constants.EnvEntrypoint:           entry,
		constants.EnvEntrypointFunc:       fn,
		constants.EnvStage:                e.fn.env.Stage,
		constants.EnvECSContainerMetadata: true,
	}
	e.nodeReuse(env)
	if t := e.timeout(); t > 0 {
		env[constants.EnvTimeout] = t
	}
	if e.spec.CPU > 0 {
		env[constants.EnvCPU] = e.spec.CPU
	}
	if mem := e.memory(); mem > 0 {
		env[constants.EnvMemory] = mem
	}
	cloudRefs(env)
	return env
}

func (e *job) memory() int {
	if e.spec.Memory > 0 {
		return e.spec.Memory
	}
	return e.fn.spec.Memory
}

func (e *job) Spread(ctx context.Context) (*Synthesis, error) {
	url, err := e.ImageURL(ctx)
	if err != nil {
		return nil, err
	}
	out := &Synthesis{}
	out.addResource(e.jobKey("LogGroup"), e.logGroup())
	out.addResource(e.jobKey(""), e.definition(url))
	return out, nil
}

func (e *job) logGroup() map[string]any {
	retention := e.spec.LogsRetentionInDays
	if retention <= 0 {
		retention = constants.DefaultLogRetentionInDays
	}
	return map[string]any{
		"Type":           "AWS::Logs::LogGroup",
		"DeletionPolicy": "Delete",
		"Properties": map[string]any{
			"LogGroupName":    e.logGroupName(),
			"RetentionInDays": retention,
		},
	}
}

func (e *job) definition(url string) map[string]any {
	spec := e.spec
	env := e.environment(e.projection())
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]any, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, map[string]any{"Name": k, "Value": env[k]})
	}

	container := map[string]any{
		"Command":     []any{"Ref::inputEvent"},
		"Environment": pairs,
		"JobRoleArn":  e.taskRole(),
		"Image":       url,
		"Privileged":  false,
		"LogConfiguration": map[string]any{
			"LogDriver": "awslogs",
			"Options": map[string]any{
				"awslogs-group":             e.logGroupName(),
				"awslogs-region":            map[string]any{"Ref": "AWS::Region"},
				"awslogs-multiline-pattern": multilinePattern(spec.LogsMultilinePattern),
			},
		},
		"ReadonlyRootFilesystem": false,
	}
	if spec.RunsOnFargate {
		container["ExecutionRoleArn"] = e.taskRole()
	}
	if spec.SoftCPU > 0 {
		container["Ulimits"] = []any{map[string]any{"SoftLimit": spec.SoftCPU, "Name": "cpu", "HardLimit": -1}}
	}
	var requirements []any
	if spec.CPU > 0 {
		requirements = append(requirements, map[string]any{"Type": "VCPU", "Value": spec.CPU})
	}
	if mem := e.memory(); mem > 0 {
		requirements = append(requirements, map[string]any{"Type": "MEMORY", "Value": mem})
	}
	if len(requirements) > 0 {
		container["ResourceRequirements"] = requirements
	}

	jobType := spec.JobType
	if jobType == "" {
		jobType = "container"
	}
	attempts := spec.RetryCount
	if attempts <= 0 {
		attempts = constants.DefaultBatchAttempts
	}
	platform := "EC2"
	if spec.RunsOnFargate {
		platform = "FARGATE"
	}
	props := map[string]any{
		"Type":                 jobType,
		"RetryStrategy":        map[string]any{"Attempts": attempts},
		"Parameters":           map[string]any{"inputEvent": "{}"},
		"PlatformCapabilities": []any{platform},
		"ContainerProperties":  container,
	}
	if spec.PropagateTags {
		props["PropagateTags"] = true
	}
	if len(spec.Tags) > 0 {
		tags := make(map[string]any, len(spec.Tags))
		for k, v := range spec.Tags {
			tags[k] = v
		}
		props["Tags"] = tags
	}
	if t := e.timeout(); t > 0 {
		props["Timeout"] = map[string]any{"AttemptDurationSeconds": t}
	}
	return map[string]any{
		"Type":       "AWS::Batch::JobDefinition",
		"DependsOn":  []any{e.jobKey("LogGroup")},
		"Properties": props,
	}
}
