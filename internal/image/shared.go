// Where: internal/image/shared.go
// What: Top-level reusable images declared under `images`.
// Why: Events referencing an imageId share one repository and one build per run.
package image

import (
	"context"

	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/options"
)

// FileSource builds from a user Dockerfile plus additional files.
type FileSource struct {
	Dir        string
	DockerFile string
	Additional []options.ContainerFile
	BuildArgs  map[string]string
}

func (s FileSource) ContainerFiles() ([]builder.File, error) {
	if s.DockerFile == "" {
		return nil, errs.New(errs.ConfigInvalid, "image.ContainerFiles", "dockerFile is required")
	}
	files := []builder.File{builder.NewFile(s.Dir, s.DockerFile, "Dockerfile")}
	return append(files, AdditionalFiles(s.Dir, s.Additional)...), nil
}

func (s FileSource) ContainerBuildArgs() map[string]string { return s.BuildArgs }

// AdditionalFiles maps user-declared files. A file path overrides dir.
func AdditionalFiles(dir string, extra []options.ContainerFile) []builder.File {
	out := make([]builder.File, 0, len(extra))
	for _, f := range extra {
		base := dir
		if f.Path != "" {
			base = f.Path
		}
		out = append(out, builder.NewFile(base, f.From, f.To))
	}
	return out
}

// Shared is a reusable image. Disabled images succeed without doing work.
type Shared struct {
	*Image
	id   string
	spec *options.Image
	dir  string
}

// NewShared builds the image for id from spec. dir is the service directory.
func NewShared(env *Env, id string, spec *options.Image, dir string) *Shared {
	s := &Shared{id: id, dir: dir}
	s.Image = New(env, id, nil)
	s.Update(spec)
	return s
}

// ID returns the image id.
func (s *Shared) ID() string { return s.id }

// Update refreshes the options without changing the tag.
func (s *Shared) Update(spec *options.Image) {
	s.spec = spec
	s.SetSource(FileSource{
		Dir:        s.dir,
		DockerFile: spec.DockerFile,
		Additional: spec.AdditionalDockerFiles,
		BuildArgs:  spec.DockerBuildArgs,
	})
}

// Enabled reports whether the image participates in the run.
func (s *Shared) Enabled() bool { return s.spec.IsEnabled() }

func (s *Shared) Spread(context.Context) error            { return nil }
func (s *Shared) CheckDependencies(context.Context) error { return nil }

func (s *Shared) CreateRequiredResources(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.Image.CreateRequiredResources(ctx)
}

func (s *Shared) Build(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.Image.Build(ctx)
}

func (s *Shared) Push(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.Image.Push(ctx)
}

func (s *Shared) Cleanup(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.Image.Cleanup(ctx)
}
