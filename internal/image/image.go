// Where: internal/image/image.go
// What: Image entity: registry repository, build, tag, push, cleanup, and delete.
// Why: Every container event and shared image goes through the same lifecycle.
package image

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/ledger"
	"github.com/hybridless/hybridless/internal/registry"
)

const keychainExists = "The specified item already exists in the keychain"

// Source supplies the build context of an image.
type Source interface {
	ContainerFiles() ([]builder.File, error)
	ContainerBuildArgs() map[string]string
}

// Image is one remote repository plus the tag produced by this run.
type Image struct {
	env        *Env
	owner      string
	currentTag string
	source     Source
}

// New builds an image for owner (`{function}.{index}` or an image id).
// The tag is fixed here for the rest of the run.
func New(env *Env, owner string, source Source) *Image {
	return &Image{
		env:        env,
		owner:      owner,
		currentTag: env.RunTag(),
		source:     source,
	}
}

// Owner returns the logical owner used in the repository name.
func (i *Image) Owner() string { return i.owner }

// CurrentTag returns the tag produced by this run.
func (i *Image) CurrentTag() string { return i.currentTag }

// RepoName returns the remote repository name.
func (i *Image) RepoName() string { return i.env.RepoName(i.owner) }

// SetSource replaces the build source after options are refreshed.
func (i *Image) SetSource(source Source) { i.source = source }

// URL is the fully qualified remote reference of the current tag.
func (i *Image) URL(ctx context.Context) (string, error) {
	accountID, err := i.env.accountID(ctx)
	if err != nil {
		return "", errs.Wrap(errs.ExternalUnavailable, "image.URL", err)
	}
	return registry.ImageURL(accountID, i.env.Region, i.RepoName(), i.currentTag), nil
}

func (i *Image) localName() string {
	return i.RepoName() + ":" + i.currentTag
}

// CreateRequiredResources creates the repository and its lifecycle policy
// unless a repository with the same name already exists.
func (i *Image) CreateRequiredResources(ctx context.Context) error {
	const op = "image.CreateRequiredResources"
	log := i.env.logger()
	name := i.RepoName()
	exists, err := registry.FindRepository(ctx, i.env.Registry, name)
	if err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	if exists {
		log.Info(fmt.Sprintf("ECR repo %s already exists, skipping it!", name))
		return nil
	}
	log.Info(fmt.Sprintf("Creating ECR repo %s..", name))
	if err := i.env.Registry.CreateRepository(ctx, name, i.env.Tags); err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, fmt.Errorf("create repository %s: %w", name, err))
	}
	log.Info(fmt.Sprintf("Setting ECR repo %s lifecycle policy..", name))
	policy := registry.LifecyclePolicy(constants.DefaultRepositoryImageLimit)
	if err := i.env.Registry.PutLifecyclePolicy(ctx, name, policy); err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, fmt.Errorf("put lifecycle policy %s: %w", name, err))
	}
	return nil
}

// Build builds the image locally and tags it with the remote URL.
func (i *Image) Build(ctx context.Context) error {
	const op = "image.Build"
	if i.source == nil {
		return errs.New(errs.ConfigInvalid, op, "image %s has no build source", i.owner)
	}
	url, err := i.URL(ctx)
	if err != nil {
		return err
	}
	files, err := i.source.ContainerFiles()
	if err != nil {
		return err
	}
	if _, err := i.env.Builder.BuildImage(ctx, files, i.localName(), i.source.ContainerBuildArgs()); err != nil {
		return err
	}
	if err := i.env.Builder.TagImage(ctx, i.localName(), url); err != nil {
		return errs.Wrap(errs.BuildFailure, op, err)
	}
	return nil
}

// Push logs in to the registry and pushes the tagged URL.
func (i *Image) Push(ctx context.Context) error {
	const op = "image.Push"
	log := i.env.logger()
	url, err := i.URL(ctx)
	if err != nil {
		return err
	}

	login := fmt.Sprintf("aws ecr get-login-password --region %s | docker login -u AWS %s --password-stdin", i.env.Region, url)
	auth, err := i.env.Runner.RunShell(ctx, "", login)
	if err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	if containsFold(auth.Stderr, "error") && !strings.Contains(auth.Stderr, keychainExists) {
		return errs.New(errs.PushFailure, op, "registry login failed: %s", strings.TrimSpace(auth.Stderr))
	}

	log.Info(fmt.Sprintf("Pushing docker image on repo %s..", i.RepoName()))
	out, err := i.env.Runner.RunCapture(ctx, "", "docker", "push", url)
	if err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	if containsFold(out.Stdout, "error") {
		return errs.New(errs.PushFailure, op, "%s", strings.TrimSpace(out.Stdout))
	}
	if out.ExitCode != 0 {
		return errs.New(errs.PushFailure, op, "docker push exited %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	if out.Stdout != "" {
		log.Debug(out.Stdout)
	}
	log.Info(fmt.Sprintf("Pushed %s with tag %s", i.RepoName(), i.currentTag))
	return i.record(ctx, url)
}

func (i *Image) record(ctx context.Context, url string) error {
	if i.env.Ledger == nil {
		return nil
	}
	entry := ledger.Entry{
		Repository: i.RepoName(),
		Tag:        i.currentTag,
		URL:        url,
		Service:    i.env.Service,
		Stage:      i.env.Stage,
		Owner:      i.owner,
		PushedAt:   i.env.now().UTC().Truncate(time.Second),
	}
	if err := i.env.Ledger.Record(ctx, entry); err != nil {
		return errs.Wrap(errs.ExternalUnavailable, "image.Push", err)
	}
	return nil
}

// Cleanup deletes every remote image whose tag is not the current one.
func (i *Image) Cleanup(ctx context.Context) error {
	const op = "image.Cleanup"
	log := i.env.logger()
	name := i.RepoName()
	log.Info(fmt.Sprintf("Cleaning up old ECR images from: %s..", name))
	ids, err := i.env.Registry.ListImages(ctx, name, constants.DefaultListImagesPageSize)
	if err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	remove := make([]registry.ImageID, 0, len(ids))
	for _, id := range ids {
		if id.Tag != i.currentTag {
			remove = append(remove, id)
		}
	}
	if len(remove) == 0 {
		log.Warn(fmt.Sprintf("No images found on ECR repo %s to be cleaned; This should not happen unless you have manually changed the ECR lifecycle policy.", name))
		return nil
	}
	log.Info(fmt.Sprintf("Cleaning up %d unused images on ECR repo %s..", len(remove), name))
	if err := i.env.Registry.BatchDeleteImage(ctx, name, remove); err != nil {
		return errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	return nil
}

// PruneLocal removes the local tags created by Build. Missing images only warn.
func (i *Image) PruneLocal(ctx context.Context) error {
	log := i.env.logger()
	url, err := i.URL(ctx)
	if err != nil {
		return err
	}
	for _, name := range []string{url, i.localName()} {
		err := i.env.Builder.DeleteImage(ctx, name)
		if err == nil {
			continue
		}
		if kind, ok := errs.KindOf(err); ok && kind == errs.NotFound {
			log.Warn(fmt.Sprintf("Local image %s not found, skipping it.", name))
			continue
		}
		return err
	}
	return nil
}

// Delete force-deletes the remote repository.
func (i *Image) Delete(ctx context.Context) error {
	name := i.RepoName()
	i.env.logger().Info(fmt.Sprintf("Deleting ECR repo %s..", name))
	if err := i.env.Registry.DeleteRepository(ctx, name, true); err != nil {
		return errs.Wrap(errs.ExternalUnavailable, "image.Delete", err)
	}
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
