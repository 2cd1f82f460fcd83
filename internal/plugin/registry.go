// Where: internal/plugin/registry.go
// What: Registry client resolved from the host provider on first use.
// Why: Synthesis-only runs must not need cloud credentials.
package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/registry"
)

type lazyRegistry struct {
	plugin *Plugin

	mu  sync.Mutex
	api registry.API
}

func (l *lazyRegistry) client(ctx context.Context) (registry.API, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.api != nil {
		return l.api, nil
	}
	provider := l.plugin.provider
	if provider == nil {
		return nil, errs.New(errs.ExternalUnavailable, "plugin.registry", "provider %s is not resolved", meta.ProviderName)
	}
	api, err := provider.Registry(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ExternalUnavailable, "plugin.registry", fmt.Errorf("registry client: %w", err))
	}
	l.api = api
	return api, nil
}

func (l *lazyRegistry) DescribeRepositories(ctx context.Context, nextToken string) (registry.Page, error) {
	api, err := l.client(ctx)
	if err != nil {
		return registry.Page{}, err
	}
	return api.DescribeRepositories(ctx, nextToken)
}

func (l *lazyRegistry) CreateRepository(ctx context.Context, name string, tags map[string]string) error {
	api, err := l.client(ctx)
	if err != nil {
		return err
	}
	return api.CreateRepository(ctx, name, tags)
}

func (l *lazyRegistry) PutLifecyclePolicy(ctx context.Context, name, policy string) error {
	api, err := l.client(ctx)
	if err != nil {
		return err
	}
	return api.PutLifecyclePolicy(ctx, name, policy)
}

func (l *lazyRegistry) ListImages(ctx context.Context, name string, maxResults int) ([]registry.ImageID, error) {
	api, err := l.client(ctx)
	if err != nil {
		return nil, err
	}
	return api.ListImages(ctx, name, maxResults)
}

func (l *lazyRegistry) BatchDeleteImage(ctx context.Context, name string, ids []registry.ImageID) error {
	api, err := l.client(ctx)
	if err != nil {
		return err
	}
	return api.BatchDeleteImage(ctx, name, ids)
}

func (l *lazyRegistry) DeleteRepository(ctx context.Context, name string, force bool) error {
	api, err := l.client(ctx)
	if err != nil {
		return err
	}
	return api.DeleteRepository(ctx, name, force)
}
