// Where: internal/function/env.go
// What: Run-wide collaborators handed to every function and event.
// Why: Events resolve names, images, and dependency flags without a back-reference to the orchestrator.
package function

import (
	"github.com/hybridless/hybridless/internal/deps"
	"github.com/hybridless/hybridless/internal/image"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/naming"
	"github.com/hybridless/hybridless/internal/staging"
)

// Env is shared by every function of a run.
type Env struct {
	Images *image.Env
	Deps   *deps.Registry
	Log    *logger.Logger

	// Service is the raw service name; Stage the resolved stage.
	Service string
	Stage   string
	// ServiceDir is the directory user paths are relative to.
	ServiceDir string
	// StagingRoot receives rendered Dockerfiles and entry files.
	StagingRoot string

	DisableWebpack   bool
	BuildConcurrency int
	Tags             map[string]string
	// ProviderEnvironment is merged under every task environment.
	ProviderEnvironment map[string]any
	// SharedImage looks up a top-level image by id.
	SharedImage func(id string) (*image.Shared, bool)
}

// ServiceKey is the logical service name used in resource keys.
func (e *Env) ServiceKey() string { return naming.Logical(e.Service) }

func (e *Env) logger() *logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

func (e *Env) stagingDir(owner string) (string, error) {
	return staging.OwnerDir(e.StagingRoot, e.Service, e.Stage, owner)
}

func (e *Env) providerEnvironment() map[string]any {
	out := make(map[string]any, len(e.ProviderEnvironment))
	for k, v := range e.ProviderEnvironment {
		out[k] = v
	}
	return out
}
