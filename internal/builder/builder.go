// Where: internal/builder/builder.go
// What: Docker image build, tag and removal over the daemon API.
// Why: Build contexts are streamed from memory instead of a staged directory.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/errdefs"

	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/logger"
)

const successMarker = "Successfully built"

var imageIDPattern = regexp.MustCompile(`"ID":"sha256:([a-fA-F0-9]{64})"`)

// DockerAPI defines the subset of Docker SDK methods used by the builder.
type DockerAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
}

// Builder runs one image build at a time against the daemon.
type Builder struct {
	client DockerAPI
	log    *logger.Logger
	mu     sync.Mutex
}

// New creates a Builder.
func New(client DockerAPI, log *logger.Logger) *Builder {
	return &Builder{client: client, log: log}
}

// BuildImage packages files into a build context and builds imageName.
// It returns the image IDs reported by the daemon.
func (b *Builder) BuildImage(ctx context.Context, files []File, imageName string, buildArgs map[string]string) ([]string, error) {
	const op = "builder.BuildImage"
	if b.client == nil {
		return nil, errs.New(errs.ExternalUnavailable, op, "docker client is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.log.Info(fmt.Sprintf("Building docker image.. (%s)", imageName))
	var buildCtx bytes.Buffer
	if err := WriteContext(&buildCtx, files); err != nil {
		return nil, errs.Wrap(errs.BuildFailure, op, err)
	}
	opts := types.ImageBuildOptions{
		Tags:   []string{imageName},
		Remove: true,
	}
	if len(buildArgs) > 0 {
		opts.BuildArgs = make(map[string]*string, len(buildArgs))
		for k, v := range buildArgs {
			val := v
			opts.BuildArgs[k] = &val
		}
	}
	resp, err := b.client.ImageBuild(ctx, &buildCtx, opts)
	if err != nil {
		return nil, errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	ids, err := ParseBuildOutput(string(raw))
	if err != nil {
		b.log.Info("Docker image build error!")
		return nil, errs.Wrap(errs.BuildFailure, op, err)
	}
	b.log.Info("Docker image built!")
	return ids, nil
}

// ParseBuildOutput extracts image IDs from a daemon build stream. The
// stream must carry the success marker and at least one ID.
func ParseBuildOutput(resp string) ([]string, error) {
	matches := imageIDPattern.FindAllStringSubmatch(resp, -1)
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match[1])
	}
	if !strings.Contains(resp, successMarker) || len(ids) == 0 {
		return nil, errors.New(resp)
	}
	return ids, nil
}

// TagImage tags source as target.
func (b *Builder) TagImage(ctx context.Context, source, target string) error {
	if err := b.client.ImageTag(ctx, source, target); err != nil {
		return errs.Wrap(errs.ExternalUnavailable, "builder.TagImage", err)
	}
	return nil
}

// DeleteImage force-removes a local image. A missing image is NotFound;
// any other daemon failure is ExternalUnavailable.
func (b *Builder) DeleteImage(ctx context.Context, imageName string) error {
	const op = "builder.DeleteImage"
	b.log.Info(fmt.Sprintf("Deleting docker image.. (%s)", imageName))
	if _, err := b.client.ImageRemove(ctx, imageName, image.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			b.log.Info("Docker image not found error!")
			return errs.Wrap(errs.NotFound, op, err)
		}
		b.log.Info("Docker image removal error!")
		return errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	b.log.Info("Docker image removed!")
	return nil
}
