// Where: internal/host/lifecycle.go
// What: The package and remove lifecycles fired by the host.
// Why: Plugins hook into these event names; the host contributes the execution role and output.
package host

import (
	"context"
	"fmt"

	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/meta"
)

// Package lifecycle events, in firing order.
var packageEvents = []string{
	"package:initialize",
	"package:setupProviderConfiguration",
	"package:createDeploymentArtifacts",
	"package:compileFunctions",
	"deploy:compileFunctions",
	"package:finalize",
}

const (
	cleanupEvent = "aws:deploy:finalize:cleanup"
	removeEvent  = "remove:remove"
)

// PackageOptions controls Package.
type PackageOptions struct {
	// Out defaults to .hybridless/cloudformation-template.<ext>.
	Out    string
	Format string
	// Cleanup also fires aws:deploy:finalize:cleanup.
	Cleanup bool
}

// Package fires the package lifecycle and writes the template. It
// returns the written path.
func (h *Host) Package(ctx context.Context, opts PackageOptions) (string, error) {
	var written string
	actions := map[string]func(context.Context) error{
		"package:setupProviderConfiguration": func(context.Context) error {
			h.compileExecutionRole()
			return nil
		},
		"package:finalize": func(context.Context) error {
			path, err := h.WriteTemplate(opts.Out, opts.Format)
			written = path
			return err
		},
	}
	for _, event := range packageEvents {
		if err := h.fire(ctx, event, actions[event]); err != nil {
			return written, err
		}
	}
	if opts.Cleanup {
		if err := h.fire(ctx, cleanupEvent, nil); err != nil {
			return written, err
		}
	}
	return written, nil
}

// Remove fires the remove lifecycle.
func (h *Host) Remove(ctx context.Context) error {
	return h.fire(ctx, removeEvent, nil)
}

// fire runs before hooks, then the host action, then main and after hooks.
func (h *Host) fire(ctx context.Context, event string, action func(context.Context) error) error {
	h.log.Debug(fmt.Sprintf("Lifecycle %s", event))
	if err := h.plugins.run(ctx, "before:"+event, false); err != nil {
		return err
	}
	if action != nil {
		if err := action(ctx); err != nil {
			return err
		}
	}
	if err := h.plugins.run(ctx, event, false); err != nil {
		return err
	}
	return h.plugins.run(ctx, "after:"+event, false)
}

// compileExecutionRole adds the lambda execution role when the service
// has functions and none is compiled yet.
func (h *Host) compileExecutionRole() {
	if len(value.AsMap(h.service.Section("functions"))) == 0 {
		return
	}
	if _, ok := h.service.CompiledResource(meta.ExecutionRoleResource); ok {
		return
	}
	h.service.SetCompiledResource(meta.ExecutionRoleResource, executionRole(h.service.Name(), h.service.Stage(), h.service.Region()))
}

func executionRole(service, stage, region string) map[string]any {
	return map[string]any{
		"Type": "AWS::IAM::Role",
		"Properties": map[string]any{
			"AssumeRolePolicyDocument": map[string]any{
				"Version": "2012-10-17",
				"Statement": []any{
					map[string]any{
						"Effect":    "Allow",
						"Principal": map[string]any{"Service": []any{"lambda.amazonaws.com"}},
						"Action":    []any{"sts:AssumeRole"},
					},
				},
			},
			"Path":     "/",
			"RoleName": fmt.Sprintf("%s-%s-%s-lambdaRole", service, stage, region),
		},
	}
}
