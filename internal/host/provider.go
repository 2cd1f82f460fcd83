// Where: internal/host/provider.go
// What: AWS provider shim backing registry, account, ledger and artifact clients.
// Why: Clients are created on first use so synthesis-only runs never touch AWS.
package host

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/hybridless/hybridless/internal/artifact"
	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/ledger"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/registry"
)

// CallerIdentityAPI is the STS surface used for the account lookup.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSProvider implements ports.Provider for the `aws` provider name.
type AWSProvider struct {
	region   string
	endpoint string

	// Swapped in tests.
	loadConfig func(ctx context.Context, region string) (aws.Config, error)
	newECR     func(cfg aws.Config, endpoint string) registry.ECRAPI
	newSTS     func(cfg aws.Config, endpoint string) CallerIdentityAPI

	mu      sync.Mutex
	cfg     *aws.Config
	api     registry.API
	account string
}

// NewAWSProvider returns a provider for region. The endpoint override is
// read from HYBRIDLESS_AWS_ENDPOINT.
func NewAWSProvider(region string) *AWSProvider {
	return &AWSProvider{
		region:     region,
		endpoint:   strings.TrimSpace(os.Getenv(constants.EnvAWSEndpoint)),
		loadConfig: loadAWSConfig,
		newECR:     newECRClient,
		newSTS:     newSTSClient,
	}
}

func (p *AWSProvider) Name() string { return meta.ProviderName }

// Region returns the region clients are created for.
func (p *AWSProvider) Region() string { return p.region }

func (p *AWSProvider) config(ctx context.Context) (aws.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg != nil {
		return *p.cfg, nil
	}
	cfg, err := p.loadConfig(ctx, p.region)
	if err != nil {
		return aws.Config{}, errs.Wrap(errs.ExternalUnavailable, "host.awsConfig", err)
	}
	p.cfg = &cfg
	return cfg, nil
}

// Registry returns the ECR-backed registry client.
func (p *AWSProvider) Registry(ctx context.Context) (registry.API, error) {
	cfg, err := p.config(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.api == nil {
		p.api = registry.NewECR(p.newECR(cfg, p.endpoint))
	}
	return p.api, nil
}

// AccountID looks up the caller account once and caches it.
func (p *AWSProvider) AccountID(ctx context.Context) (string, error) {
	const op = "host.AccountID"
	p.mu.Lock()
	if p.account != "" {
		account := p.account
		p.mu.Unlock()
		return account, nil
	}
	p.mu.Unlock()

	cfg, err := p.config(ctx)
	if err != nil {
		return "", err
	}
	out, err := p.newSTS(cfg, p.endpoint).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	account := aws.ToString(out.Account)
	if account == "" {
		return "", errs.New(errs.ExternalUnavailable, op, "caller identity has no account")
	}
	p.mu.Lock()
	p.account = account
	p.mu.Unlock()
	return account, nil
}

// Ledger returns a DynamoDB ledger over table.
func (p *AWSProvider) Ledger(ctx context.Context, table string) (*ledger.Ledger, error) {
	cfg, err := p.config(ctx)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(cfg, func(options *dynamodb.Options) {
		if p.endpoint != "" {
			options.BaseEndpoint = aws.String(p.endpoint)
		}
	})
	return ledger.New(ledger.NewDynamo(client), table), nil
}

// Artifacts returns an S3 uploader over bucket.
func (p *AWSProvider) Artifacts(ctx context.Context, bucket string) (*artifact.Uploader, error) {
	cfg, err := p.config(ctx)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(options *s3.Options) {
		if p.endpoint != "" {
			options.BaseEndpoint = aws.String(p.endpoint)
			options.UsePathStyle = true
		}
	})
	return artifact.New(artifact.NewS3(client), bucket), nil
}

func newECRClient(cfg aws.Config, endpoint string) registry.ECRAPI {
	return ecr.NewFromConfig(cfg, func(options *ecr.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func newSTSClient(cfg aws.Config, endpoint string) CallerIdentityAPI {
	return sts.NewFromConfig(cfg, func(options *sts.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile := strings.TrimSpace(os.Getenv(constants.EnvAWSProfile)); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	accessKey := strings.TrimSpace(os.Getenv(constants.EnvAWSAccessKeyID))
	secretKey := strings.TrimSpace(os.Getenv(constants.EnvAWSSecretAccessKey))
	if accessKey != "" || secretKey != "" {
		if accessKey == "" || secretKey == "" {
			return aws.Config{}, fmt.Errorf("%s and %s must be set together", constants.EnvAWSAccessKeyID, constants.EnvAWSSecretAccessKey)
		}
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}
