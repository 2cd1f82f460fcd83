// Where: internal/function/task.go
// What: Cluster task fields shared by httpd, process, scheduled, and launchable events.
// Why: Task descriptors agree on naming, role, sizing, and monitoring projections.
package function

import (
	"strconv"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/naming"
	"github.com/hybridless/hybridless/internal/options"
)

// taskName is the normalized `Task{index}`.
func (c *container) taskName() string {
	return naming.Normalize("Task" + strconv.Itoa(c.index))
}

// taskRole defaults to the lambda execution role.
func (c *container) taskRole() any {
	if c.base.Role != "" {
		return c.base.Role
	}
	return map[string]any{"Fn::GetAtt": []any{constants.DefaultTaskRoleResource, "Arn"}}
}

// taskMemory prefers the event, then the function.
func (c *container) taskMemory() int {
	if c.base.Memory > 0 {
		return c.base.Memory
	}
	if c.fn.spec.Memory > 0 {
		return c.fn.spec.Memory
	}
	return constants.DefaultTaskMemory
}

func taskCPU(task *options.TaskSpec) int {
	if task.CPU > 0 {
		return task.CPU
	}
	return constants.DefaultTaskCPU
}

func taskConcurrency(task *options.TaskSpec) int {
	if task.Concurrency > 0 {
		return task.Concurrency
	}
	return constants.DefaultTaskConcurrency
}

func multilinePattern(pattern string) string {
	if pattern != "" {
		return pattern
	}
	return constants.DefaultLogsMultilinePattern
}

// newRelic projects the APM settings; monitoring is explicitly
// disabled when no license key is configured.
func (c *container) newRelic(key string, env map[string]any) {
	if key == "" {
		env[constants.EnvNewRelicEnabled] = false
		return
	}
	env[constants.EnvNewRelicAppName] = c.fn.lambdaName()
	env[constants.EnvNewRelicLicenseKey] = key
	env[constants.EnvNewRelicEnabled] = true
	env[constants.EnvNewRelicNoConfigFile] = true
}

// nodeReuse enables keep-alive in the AWS SDK of node runtimes.
func (c *container) nodeReuse(env map[string]any) {
	if c.base.Runtime.Family() == options.FamilyNode {
		env[constants.EnvNodeConnectionReuse] = 1
	}
}

// setIfPresent copies v under key unless it is empty or an unresolved "null".
func setIfPresent(dst map[string]any, key string, v any) {
	if v == nil {
		return
	}
	if s, ok := v.(string); ok && !value.IsSet(s) {
		return
	}
	dst[key] = v
}

// cloudRefs are the account and region of the deploying stack.
func cloudRefs(env map[string]any) {
	env[constants.EnvAWSRegion] = map[string]any{"Ref": "AWS::Region"}
	env[constants.EnvAWSAccountID] = map[string]any{"Ref": "AWS::AccountId"}
}
