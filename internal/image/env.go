// Where: internal/image/env.go
// What: Collaborators shared by every image of a run.
// Why: Images need the registry, builder, and run identity without a back-reference to the orchestrator.
package image

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/ledger"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/registry"
	"github.com/hybridless/hybridless/internal/runner"
)

// Builder builds and tags local images.
type Builder interface {
	BuildImage(ctx context.Context, files []builder.File, imageName string, buildArgs map[string]string) ([]string, error)
	TagImage(ctx context.Context, source, target string) error
	DeleteImage(ctx context.Context, imageName string) error
}

// Recorder stores pushed tags. Optional.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) error
}

// Env carries run-wide settings and collaborators.
type Env struct {
	Registry  registry.API
	Builder   Builder
	Runner    runner.CommandRunner
	Log       *logger.Logger
	Ledger    Recorder
	Service   string
	Stage     string
	Region    string
	Tags      map[string]string
	AccountID func(ctx context.Context) (string, error)
	Now       func() time.Time

	tagOnce sync.Once
	tag     string
}

// RepoName is `{service}/{owner}-{stage}.v3`, lowercased.
func (e *Env) RepoName(owner string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s-%s%s", e.Service, owner, e.Stage, meta.RepoNameSuffix))
}

func (e *Env) logger() *logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// RunTag is the image tag of this run: the first clock reading in unix
// milliseconds. Images created later in the run, including ones rebuilt
// after an options refresh, reuse it.
func (e *Env) RunTag() string {
	e.tagOnce.Do(func() {
		e.tag = strconv.FormatInt(e.now().UnixMilli(), 10)
	})
	return e.tag
}

func (e *Env) accountID(ctx context.Context) (string, error) {
	if e.AccountID == nil {
		return "", fmt.Errorf("account id resolver is not configured")
	}
	return e.AccountID(ctx)
}
