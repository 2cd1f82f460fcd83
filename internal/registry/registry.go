// Where: internal/registry/registry.go
// What: Container registry client contract and repository helpers.
// Why: Keep image lifecycle code independent from the cloud SDK.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
)

// Repository is the subset of repository attributes the engine reads.
type Repository struct {
	Name string
	URI  string
}

// Page is one page of DescribeRepositories output.
type Page struct {
	Repositories []Repository
	NextToken    string
}

// ImageID identifies a stored image by digest and optional tag.
type ImageID struct {
	Digest string
	Tag    string
}

// API is the container registry surface consumed by image lifecycle steps.
type API interface {
	DescribeRepositories(ctx context.Context, nextToken string) (Page, error)
	CreateRepository(ctx context.Context, name string, tags map[string]string) error
	PutLifecyclePolicy(ctx context.Context, name, policy string) error
	ListImages(ctx context.Context, name string, maxResults int) ([]ImageID, error)
	BatchDeleteImage(ctx context.Context, name string, ids []ImageID) error
	DeleteRepository(ctx context.Context, name string, force bool) error
}

// FindRepository follows NextToken cursors until name is found or the
// listing is exhausted.
func FindRepository(ctx context.Context, api API, name string) (bool, error) {
	token := ""
	for {
		page, err := api.DescribeRepositories(ctx, token)
		if err != nil {
			return false, fmt.Errorf("describe repositories: %w", err)
		}
		for _, repo := range page.Repositories {
			if repo.Name == name {
				return true, nil
			}
		}
		if page.NextToken == "" || page.NextToken == token {
			return false, nil
		}
		token = page.NextToken
	}
}

type lifecycleRule struct {
	RulePriority int               `json:"rulePriority"`
	Description  string            `json:"description"`
	Selection    lifecycleSelect   `json:"selection"`
	Action       map[string]string `json:"action"`
}

type lifecycleSelect struct {
	TagStatus   string `json:"tagStatus"`
	CountType   string `json:"countType"`
	CountNumber int    `json:"countNumber"`
}

// LifecyclePolicy returns a policy that expires every image beyond the
// most recent keep images, regardless of tag status.
func LifecyclePolicy(keep int) string {
	doc := map[string][]lifecycleRule{
		"rules": {{
			RulePriority: 1,
			Description:  fmt.Sprintf("Keep last %d items (failsafe policy)", keep),
			Selection: lifecycleSelect{
				TagStatus:   "any",
				CountType:   "imageCountMoreThan",
				CountNumber: keep,
			},
			Action: map[string]string{"type": "expire"},
		}},
	}
	out, _ := json.Marshal(doc)
	return string(out)
}

// ImageURL is the fully qualified reference of a tagged image.
func ImageURL(accountID, region, repoName, tag string) string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s:%s", accountID, region, repoName, tag)
}

// Host is the registry endpoint used for docker login.
func Host(accountID, region string) string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", accountID, region)
}
