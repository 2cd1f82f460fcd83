// Where: internal/registry/registry_test.go
// What: Tests for repository lookup, lifecycle policy and the ECR adapter.
// Why: Repository creation must stay idempotent across paginated listings.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pagedAPI struct {
	API
	pages  map[string]Page
	tokens []string
	err    error
}

func (p *pagedAPI) DescribeRepositories(_ context.Context, token string) (Page, error) {
	p.tokens = append(p.tokens, token)
	if p.err != nil {
		return Page{}, p.err
	}
	return p.pages[token], nil
}

func TestFindRepositoryFollowsPages(t *testing.T) {
	api := &pagedAPI{pages: map[string]Page{
		"":   {Repositories: []Repository{{Name: "svc/a-dev.v3"}}, NextToken: "p2"},
		"p2": {Repositories: []Repository{{Name: "svc/b-dev.v3"}}, NextToken: "p3"},
		"p3": {Repositories: []Repository{{Name: "svc/c-dev.v3"}}},
	}}
	found, err := FindRepository(context.Background(), api, "svc/c-dev.v3")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"", "p2", "p3"}, api.tokens)

	api.tokens = nil
	found, err = FindRepository(context.Background(), api, "svc/missing-dev.v3")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, api.tokens, 3)
}

func TestFindRepositoryPropagatesErrors(t *testing.T) {
	_, err := FindRepository(context.Background(), &pagedAPI{err: errors.New("boom")}, "x")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLifecyclePolicy(t *testing.T) {
	var doc struct {
		Rules []struct {
			RulePriority int `json:"rulePriority"`
			Selection    struct {
				TagStatus   string `json:"tagStatus"`
				CountType   string `json:"countType"`
				CountNumber int    `json:"countNumber"`
			} `json:"selection"`
			Action struct {
				Type string `json:"type"`
			} `json:"action"`
		} `json:"rules"`
	}
	require.NoError(t, json.Unmarshal([]byte(LifecyclePolicy(100)), &doc))
	require.Len(t, doc.Rules, 1)
	rule := doc.Rules[0]
	assert.Equal(t, 1, rule.RulePriority)
	assert.Equal(t, "any", rule.Selection.TagStatus)
	assert.Equal(t, "imageCountMoreThan", rule.Selection.CountType)
	assert.Equal(t, 100, rule.Selection.CountNumber)
	assert.Equal(t, "expire", rule.Action.Type)
}

func TestImageURL(t *testing.T) {
	got := ImageURL("123", "us-east-1", "svc/api.0-dev.v3", "1700")
	if got != "123.dkr.ecr.us-east-1.amazonaws.com/svc/api.0-dev.v3:1700" {
		t.Fatalf("unexpected url %s", got)
	}
}

type fakeECR struct {
	ECRAPI
	create  *ecr.CreateRepositoryInput
	list    *ecr.ListImagesInput
	deleted *ecr.BatchDeleteImageInput
	repo    *ecr.DeleteRepositoryInput
}

func (f *fakeECR) DescribeRepositories(_ context.Context, in *ecr.DescribeRepositoriesInput, _ ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	if aws.ToString(in.NextToken) == "" {
		return &ecr.DescribeRepositoriesOutput{
			Repositories: []types.Repository{{RepositoryName: aws.String("a"), RepositoryUri: aws.String("uri/a")}},
			NextToken:    aws.String("next"),
		}, nil
	}
	return &ecr.DescribeRepositoriesOutput{}, nil
}

func (f *fakeECR) CreateRepository(_ context.Context, in *ecr.CreateRepositoryInput, _ ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	f.create = in
	return &ecr.CreateRepositoryOutput{}, nil
}

func (f *fakeECR) ListImages(_ context.Context, in *ecr.ListImagesInput, _ ...func(*ecr.Options)) (*ecr.ListImagesOutput, error) {
	f.list = in
	return &ecr.ListImagesOutput{ImageIds: []types.ImageIdentifier{
		{ImageDigest: aws.String("sha256:1"), ImageTag: aws.String("1")},
		{ImageDigest: aws.String("sha256:2")},
	}}, nil
}

func (f *fakeECR) BatchDeleteImage(_ context.Context, in *ecr.BatchDeleteImageInput, _ ...func(*ecr.Options)) (*ecr.BatchDeleteImageOutput, error) {
	f.deleted = in
	return &ecr.BatchDeleteImageOutput{}, nil
}

func (f *fakeECR) DeleteRepository(_ context.Context, in *ecr.DeleteRepositoryInput, _ ...func(*ecr.Options)) (*ecr.DeleteRepositoryOutput, error) {
	f.repo = in
	return &ecr.DeleteRepositoryOutput{}, nil
}

func TestECRAdapterMapsTypes(t *testing.T) {
	fake := &fakeECR{}
	adapter := NewECR(fake)
	ctx := context.Background()

	page, err := adapter.DescribeRepositories(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "next", page.NextToken)
	assert.Equal(t, []Repository{{Name: "a", URI: "uri/a"}}, page.Repositories)

	require.NoError(t, adapter.CreateRepository(ctx, "svc/a", map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, types.ImageTagMutabilityMutable, fake.create.ImageTagMutability)
	require.Len(t, fake.create.Tags, 2)
	assert.Equal(t, "a", aws.ToString(fake.create.Tags[0].Key))

	ids, err := adapter.ListImages(ctx, "svc/a", 100)
	require.NoError(t, err)
	assert.Equal(t, int32(100), aws.ToInt32(fake.list.MaxResults))
	assert.Equal(t, []ImageID{{Digest: "sha256:1", Tag: "1"}, {Digest: "sha256:2"}}, ids)

	require.NoError(t, adapter.BatchDeleteImage(ctx, "svc/a", ids[1:]))
	require.Len(t, fake.deleted.ImageIds, 1)
	assert.Nil(t, fake.deleted.ImageIds[0].ImageTag)

	require.NoError(t, adapter.DeleteRepository(ctx, "svc/a", true))
	assert.True(t, fake.repo.Force)
}

func TestECRAdapterNilClient(t *testing.T) {
	if err := (&ECR{}).DeleteRepository(context.Background(), "x", true); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
