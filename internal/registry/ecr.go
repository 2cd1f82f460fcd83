// Where: internal/registry/ecr.go
// What: ECR adapter implementing API.
// Why: Map registry calls onto the AWS SDK types.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
)

// ECRAPI is the SDK surface used by the adapter.
type ECRAPI interface {
	DescribeRepositories(ctx context.Context, in *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, in *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	PutLifecyclePolicy(ctx context.Context, in *ecr.PutLifecyclePolicyInput, optFns ...func(*ecr.Options)) (*ecr.PutLifecyclePolicyOutput, error)
	ListImages(ctx context.Context, in *ecr.ListImagesInput, optFns ...func(*ecr.Options)) (*ecr.ListImagesOutput, error)
	BatchDeleteImage(ctx context.Context, in *ecr.BatchDeleteImageInput, optFns ...func(*ecr.Options)) (*ecr.BatchDeleteImageOutput, error)
	DeleteRepository(ctx context.Context, in *ecr.DeleteRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.DeleteRepositoryOutput, error)
}

// ECR adapts an SDK client to API.
type ECR struct {
	Client ECRAPI
}

// NewECR wraps client.
func NewECR(client ECRAPI) *ECR {
	return &ECR{Client: client}
}

func (e *ECR) DescribeRepositories(ctx context.Context, nextToken string) (Page, error) {
	if e.Client == nil {
		return Page{}, fmt.Errorf("ecr client is nil")
	}
	in := &ecr.DescribeRepositoriesInput{}
	if nextToken != "" {
		in.NextToken = aws.String(nextToken)
	}
	resp, err := e.Client.DescribeRepositories(ctx, in)
	if err != nil {
		return Page{}, err
	}
	page := Page{NextToken: aws.ToString(resp.NextToken)}
	for _, repo := range resp.Repositories {
		page.Repositories = append(page.Repositories, Repository{
			Name: aws.ToString(repo.RepositoryName),
			URI:  aws.ToString(repo.RepositoryUri),
		})
	}
	return page, nil
}

func (e *ECR) CreateRepository(ctx context.Context, name string, tags map[string]string) error {
	if e.Client == nil {
		return fmt.Errorf("ecr client is nil")
	}
	_, err := e.Client.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName:     aws.String(name),
		ImageTagMutability: types.ImageTagMutabilityMutable,
		Tags:               mapTags(tags),
	})
	return err
}

func (e *ECR) PutLifecyclePolicy(ctx context.Context, name, policy string) error {
	if e.Client == nil {
		return fmt.Errorf("ecr client is nil")
	}
	_, err := e.Client.PutLifecyclePolicy(ctx, &ecr.PutLifecyclePolicyInput{
		RepositoryName:      aws.String(name),
		LifecyclePolicyText: aws.String(policy),
	})
	return err
}

func (e *ECR) ListImages(ctx context.Context, name string, maxResults int) ([]ImageID, error) {
	if e.Client == nil {
		return nil, fmt.Errorf("ecr client is nil")
	}
	in := &ecr.ListImagesInput{RepositoryName: aws.String(name)}
	if maxResults > 0 {
		in.MaxResults = aws.Int32(int32(maxResults))
	}
	resp, err := e.Client.ListImages(ctx, in)
	if err != nil {
		return nil, err
	}
	out := make([]ImageID, 0, len(resp.ImageIds))
	for _, id := range resp.ImageIds {
		out = append(out, ImageID{
			Digest: aws.ToString(id.ImageDigest),
			Tag:    aws.ToString(id.ImageTag),
		})
	}
	return out, nil
}

func (e *ECR) BatchDeleteImage(ctx context.Context, name string, ids []ImageID) error {
	if e.Client == nil {
		return fmt.Errorf("ecr client is nil")
	}
	identifiers := make([]types.ImageIdentifier, 0, len(ids))
	for _, id := range ids {
		identifier := types.ImageIdentifier{}
		if id.Digest != "" {
			identifier.ImageDigest = aws.String(id.Digest)
		}
		if id.Tag != "" {
			identifier.ImageTag = aws.String(id.Tag)
		}
		identifiers = append(identifiers, identifier)
	}
	resp, err := e.Client.BatchDeleteImage(ctx, &ecr.BatchDeleteImageInput{
		RepositoryName: aws.String(name),
		ImageIds:       identifiers,
	})
	if err != nil {
		return err
	}
	if len(resp.Failures) > 0 {
		failure := resp.Failures[0]
		return fmt.Errorf("batch delete image: %s: %s", failure.FailureCode, aws.ToString(failure.FailureReason))
	}
	return nil
}

func (e *ECR) DeleteRepository(ctx context.Context, name string, force bool) error {
	if e.Client == nil {
		return fmt.Errorf("ecr client is nil")
	}
	_, err := e.Client.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
		RepositoryName: aws.String(name),
		Force:          force,
	})
	return err
}

func mapTags(tags map[string]string) []types.Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
