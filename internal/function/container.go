// Where: internal/function/container.go
// What: Behavior shared by image-backed events: image ownership, build context, dependency flags.
// Why: HTTPD, task, lambda-container, and job events differ only in layout and synthesis.
package function

import (
	"context"
	"fmt"
	"path"

	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/dockerfiles"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/image"
	"github.com/hybridless/hybridless/internal/options"
)

const webpackOutputDir = ".webpack/service"

// sharedState tracks the unified image of a function.
type sharedState struct {
	unified bool
	image   *image.Image
}

// container implements the image side of a container event. Variants
// embed it and point base/spec at their current options.
type container struct {
	fn    *scope
	index int
	// slot is the index used in the repository owner.
	slot int
	kind dockerfiles.Kind
	base *options.BaseEvent
	spec *options.ContainerSpec

	// image is nil when the event references a top-level image.
	image *image.Image
	// follower events reuse the unified image without driving its lifecycle.
	follower bool
	// tune adjusts the render request, e.g. port and health route.
	tune func(*dockerfiles.Request)
}

func newContainer(fn *scope, shared *sharedState, kind dockerfiles.Kind, base *options.BaseEvent, spec *options.ContainerSpec, index int) *container {
	c := &container{fn: fn, index: index, slot: index, kind: kind, base: base, spec: spec}
	if spec.ImageID != "" {
		return c
	}
	if !shared.unified {
		c.image = image.New(fn.env.Images, c.owner(), c)
		return c
	}
	c.slot = 0
	if shared.image == nil {
		shared.image = image.New(fn.env.Images, c.owner(), c)
	} else {
		c.follower = true
	}
	c.image = shared.image
	return c
}

// owner is `{Function}.{index}`; unified images always use index 0.
func (c *container) owner() string {
	return fmt.Sprintf("%s.%d", c.fn.key(), c.slot)
}

func (c *container) Index() int    { return c.index }
func (c *container) Enabled() bool { return c.base.IsEnabled() }

// setSpec points the container at refreshed options. It refuses when
// the image ownership would change.
func (c *container) setSpec(base *options.BaseEvent, spec *options.ContainerSpec) bool {
	if spec.ImageID != c.spec.ImageID {
		return false
	}
	c.base, c.spec = base, spec
	return true
}

// resolve returns the image backing the event and whether this event
// drives its lifecycle.
func (c *container) resolve() (*image.Image, bool, error) {
	if id := c.spec.ImageID; id != "" {
		if c.fn.env.SharedImage != nil {
			if shared, ok := c.fn.env.SharedImage(id); ok {
				return shared.Image, false, nil
			}
		}
		return nil, false, errs.New(errs.ConfigInvalid, "function.image", "image %q referenced by %s:%d is not declared", id, c.fn.name, c.index)
	}
	return c.image, !c.follower, nil
}

// ImageURL is the remote reference of the image produced in this run.
func (c *container) ImageURL(ctx context.Context) (string, error) {
	img, _, err := c.resolve()
	if err != nil {
		return "", err
	}
	return img.URL(ctx)
}

func (c *container) managed() (*image.Image, error) {
	img, owns, err := c.resolve()
	if err != nil || !owns {
		return nil, err
	}
	return img, nil
}

func (c *container) CreateRequiredResources(ctx context.Context) error {
	img, err := c.managed()
	if img == nil {
		return err
	}
	return img.CreateRequiredResources(ctx)
}

func (c *container) Build(ctx context.Context) error {
	img, err := c.managed()
	if img == nil {
		return err
	}
	return img.Build(ctx)
}

func (c *container) Push(ctx context.Context) error {
	img, err := c.managed()
	if img == nil {
		return err
	}
	return img.Push(ctx)
}

func (c *container) Cleanup(ctx context.Context) error {
	img, err := c.managed()
	if img == nil {
		return err
	}
	return img.Cleanup(ctx)
}

func (c *container) Delete(ctx context.Context) error {
	img, err := c.managed()
	if img == nil {
		return err
	}
	return img.Delete(ctx)
}

func (c *container) PruneLocal(ctx context.Context) error {
	img, err := c.managed()
	if img == nil {
		return err
	}
	return img.PruneLocal(ctx)
}

// checkDependencies signals the capabilities this container needs.
func (c *container) checkDependencies(cluster, job bool) {
	reg := c.fn.env.Deps
	switch c.base.Runtime.Family() {
	case options.FamilyNode:
		if !c.fn.env.DisableWebpack {
			reg.EnableWebpack()
		}
	case options.FamilyJava:
		reg.EnableMaven()
	case options.FamilyGo:
		reg.EnableGo()
	}
	if cluster {
		reg.EnableECS()
	}
	if !job {
		reg.EnableECSRolePermission()
	}
}

func (c *container) handler() string { return c.fn.handler(c.base) }

func (c *container) entrypoint() (string, string) {
	return Entrypoint(c.handler(), c.base.Runtime)
}

// ContainerFiles lists the build context: Dockerfile, application
// files, runtime entry files, then user additions.
func (c *container) ContainerFiles() ([]builder.File, error) {
	const op = "function.ContainerFiles"
	dir := c.fn.env.ServiceDir
	runtime := c.base.Runtime
	if runtime == options.RuntimeContainer {
		if c.spec.DockerFile == "" {
			return nil, errs.New(errs.ConfigInvalid, op, "container environments require dockerFile to be set")
		}
		files := []builder.File{builder.NewFile(dir, c.spec.DockerFile, "Dockerfile")}
		return append(files, image.AdditionalFiles(dir, c.spec.AdditionalDockerFiles)...), nil
	}

	var rendered []builder.File
	switch {
	case dockerfiles.Supports(c.kind, runtime):
		staged, err := c.fn.env.stagingDir(c.owner())
		if err != nil {
			return nil, errs.Wrap(errs.ConfigInvalid, op, err)
		}
		rendered, err = dockerfiles.NewRenderer(staged).Render(c.request())
		if err != nil {
			return nil, err
		}
	case c.spec.DockerFile == "":
		return nil, errs.New(errs.ConfigInvalid, op, "unrecognized %s runtime %q for %s", c.kind, runtime, c.fn.name)
	}
	if c.spec.DockerFile != "" {
		custom := builder.NewFile(dir, c.spec.DockerFile, "Dockerfile")
		if len(rendered) > 0 {
			rendered[0] = custom
		} else {
			rendered = []builder.File{custom}
		}
	}

	files := []builder.File{rendered[0]}
	files = append(files, c.appFiles()...)
	files = append(files, rendered[1:]...)
	return append(files, image.AdditionalFiles(dir, c.spec.AdditionalDockerFiles)...), nil
}

func (c *container) ContainerBuildArgs() map[string]string { return c.spec.DockerBuildArgs }

func (c *container) request() dockerfiles.Request {
	req := dockerfiles.Request{Kind: c.kind, Runtime: c.base.Runtime, Handler: c.handler()}
	if c.tune != nil {
		c.tune(&req)
	}
	return req
}

// appFiles ships the application tree the runtime image expects.
func (c *container) appFiles() []builder.File {
	dir := c.fn.env.ServiceDir
	switch c.base.Runtime.Family() {
	case options.FamilyNode:
		src := webpackOutputDir
		if c.fn.env.DisableWebpack {
			src = "."
		}
		return []builder.File{builder.NewFile(dir, src, constants.DefaultContainerAppDir)}
	case options.FamilyJava:
		if c.kind == dockerfiles.KindLambda {
			return []builder.File{builder.NewFile(dir, "target", "target")}
		}
		return []builder.File{
			builder.NewFile(dir, "target/classes", "target/classes"),
			builder.NewFile(dir, "target/dependency", "target/dependency"),
		}
	case options.FamilyPHP:
		handlerDir, _ := Entrypoint(c.handler(), c.base.Runtime)
		return []builder.File{builder.NewFile(dir, handlerDir, "app")}
	case options.FamilyGo:
		return []builder.File{builder.NewFile(dir, "build", "build")}
	}
	return nil
}

// environment layers provider values, the runtime projection, then
// function and event values.
func (c *container) environment(projection map[string]any) map[string]any {
	out := c.fn.env.providerEnvironment()
	for k, v := range projection {
		out[k] = v
	}
	for k, v := range c.fn.spec.Environment {
		out[k] = v
	}
	for k, v := range c.base.Environment {
		out[k] = v
	}
	return out
}

// healthPath joins route segments without doubling slashes.
func healthPath(parts ...string) string {
	return path.Join(append([]string{"/"}, parts...)...)
}
