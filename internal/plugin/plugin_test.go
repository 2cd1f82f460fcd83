// Where: internal/plugin/plugin_test.go
// What: Stage tests for the orchestrator against an in-memory host.
// Why: Stage order, shared images, and role mutation are observable only across stages.
package plugin

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/ports"
	"github.com/hybridless/hybridless/internal/registry"
	"github.com/hybridless/hybridless/internal/runner"
	"github.com/hybridless/hybridless/internal/schema"
	"github.com/hybridless/hybridless/internal/template"
)

const (
	testAccount = "123456789012"
	testTag     = "1700000000000"
)

type fakeRegistry struct {
	mu       sync.Mutex
	existing []string
	created  []string
	policies []string
	deleted  []string
	images   []registry.ImageID
	removed  []registry.ImageID
}

func (f *fakeRegistry) DescribeRepositories(_ context.Context, token string) (registry.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := registry.Page{}
	for _, name := range append(append([]string{}, f.existing...), f.created...) {
		page.Repositories = append(page.Repositories, registry.Repository{Name: name})
	}
	return page, nil
}

func (f *fakeRegistry) CreateRepository(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	return nil
}

func (f *fakeRegistry) PutLifecyclePolicy(_ context.Context, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies = append(f.policies, name)
	return nil
}

func (f *fakeRegistry) ListImages(context.Context, string, int) ([]registry.ImageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registry.ImageID{}, f.images...), nil
}

func (f *fakeRegistry) BatchDeleteImage(_ context.Context, _ string, ids []registry.ImageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ids...)
	return nil
}

func (f *fakeRegistry) DeleteRepository(_ context.Context, name string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

type fakeBuilder struct {
	mu     sync.Mutex
	built  []string
	pruned []string
}

func (f *fakeBuilder) BuildImage(_ context.Context, _ []builder.File, name string, _ map[string]string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, name)
	return []string{strings.Repeat("b", 64)}, nil
}

func (f *fakeBuilder) TagImage(context.Context, string, string) error { return nil }

func (f *fakeBuilder) DeleteImage(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned = append(f.pruned, name)
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	scripts []string
	pushed  []string
}

func (f *fakeRunner) RunCapture(_ context.Context, _ string, _ string, args ...string) (runner.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, args[len(args)-1])
	return runner.Output{Stdout: "latest: digest: sha256:abc"}, nil
}

func (f *fakeRunner) RunShell(_ context.Context, _ string, script string) (runner.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
	return runner.Output{Stdout: "Login Succeeded"}, nil
}

type fakePluginManager struct {
	mu        sync.Mutex
	spawned   []string
	installed []string
}

func (f *fakePluginManager) Spawn(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawned = append(f.spawned, name)
	return nil
}

func (f *fakePluginManager) AddPlugin(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed = append(f.installed, ref)
	return nil
}

func (f *fakePluginManager) InstalledPlugins() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.installed...)
}

type fakeProvider struct {
	registry *fakeRegistry
}

func (f *fakeProvider) Name() string { return meta.ProviderName }

func (f *fakeProvider) Registry(context.Context) (registry.API, error) { return f.registry, nil }

func (f *fakeProvider) AccountID(context.Context) (string, error) { return testAccount, nil }

type populatorFunc func(ctx context.Context, raw map[string]any) (map[string]any, error)

func (f populatorFunc) PopulateObject(ctx context.Context, raw map[string]any) (map[string]any, error) {
	return f(ctx, raw)
}

type fakeHost struct {
	service   *template.Service
	plugins   *fakePluginManager
	schema    *schema.Registry
	provider  *fakeProvider
	populator ports.VariablePopulator
}

func (h *fakeHost) Service() *template.Service                    { return h.service }
func (h *fakeHost) PluginManager() ports.PluginManager             { return h.plugins }
func (h *fakeHost) ConfigSchemaHandler() ports.ConfigSchemaHandler { return h.schema }
func (h *fakeHost) Variables() ports.VariablePopulator             { return h.populator }

func (h *fakeHost) Provider(string) (ports.Provider, error) { return h.provider, nil }

type harness struct {
	host     *fakeHost
	registry *fakeRegistry
	builder  *fakeBuilder
	runner   *fakeRunner
	plugin   *Plugin
}

func newHarness(t *testing.T, section map[string]any, mutate ...func(doc map[string]any)) *harness {
	t.Helper()
	doc := map[string]any{
		"service":  "shop",
		"provider": map[string]any{"name": "aws", "stage": "dev", "region": "us-east-1"},
	}
	if section != nil {
		doc[meta.AppName] = section
	}
	for _, fn := range mutate {
		fn(doc)
	}
	h := &harness{registry: &fakeRegistry{}, builder: &fakeBuilder{}, runner: &fakeRunner{}}
	h.host = &fakeHost{
		service:  template.NewService(doc),
		plugins:  &fakePluginManager{},
		schema:   schema.NewRegistry(),
		provider: &fakeProvider{registry: h.registry},
	}
	p, err := New(h.host, Config{
		Builder:     h.builder,
		Runner:      h.runner,
		Log:         logger.Nop(),
		ServiceDir:  t.TempDir(),
		StagingRoot: t.TempDir(),
		Now:         func() time.Time { return time.UnixMilli(1700000000000) },
	})
	require.NoError(t, err)
	h.plugin = p
	return h
}

func apiAndWorker() map[string]any {
	return map[string]any{
		"functions": map[string]any{
			"api": map[string]any{
				"handler": "src/api.handler",
				"events": []any{map[string]any{
					"eventType": "httpd",
					"runtime":   "nodejs18",
					"routes":    []any{map[string]any{"path": "/*", "method": "ANY"}},
				}},
			},
			"worker": map[string]any{
				"handler": "src/worker.handler",
				"events": []any{map[string]any{
					"eventType":      "lambda",
					"runtime":        "nodejs18",
					"protocol":       "sqs",
					"protocolArn":    "arn:aws:sqs:us-east-1:1:orders",
					"queueBatchSize": 10,
				}},
			},
		},
	}
}

func runStages(t *testing.T, ctx context.Context, stages ...func(context.Context) error) {
	t.Helper()
	for _, stage := range stages {
		require.NoError(t, stage(ctx))
	}
}

func TestNewRegistersOptionsSchema(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, []string{meta.AppName}, h.host.schema.Defined())
}

func TestCreateStagesSynthesizeService(t *testing.T) {
	h := newHarness(t, apiAndWorker())
	p := h.plugin
	ctx := context.Background()
	runStages(t, ctx, p.Setup, p.Spread, p.CheckDependencies, p.CreateResources)

	doc := h.host.service.Document()
	clusters := value.AsSlice(doc["ecs"])
	require.Len(t, clusters, 1)
	cluster := value.AsMap(clusters[0])
	assert.Equal(t, "Api", cluster["clusterName"])
	assert.Equal(t, false, cluster["albDisabled"])
	assert.Len(t, value.AsSlice(cluster["services"]), 1)

	functions := value.AsMap(doc["functions"])
	require.Contains(t, functions, "ShopWorkerdev")
	events := value.AsSlice(value.AsMap(functions["ShopWorkerdev"])["events"])
	assert.Equal(t, []any{map[string]any{"sqs": map[string]any{
		"arn":       "arn:aws:sqs:us-east-1:1:orders",
		"batchSize": 10,
	}}}, events)

	assert.Equal(t, []string{"shop/api.0-dev.v3"}, h.registry.created)
	assert.Equal(t, []string{"shop/api.0-dev.v3"}, h.registry.policies)
	assert.Contains(t, h.host.plugins.InstalledPlugins(), meta.PluginECS)
	assert.True(t, p.Deps().IsECSRequired())
}

func TestCreateResourcesSkipsExistingRepositories(t *testing.T) {
	h := newHarness(t, apiAndWorker())
	h.registry.existing = []string{"shop/api.0-dev.v3"}
	p := h.plugin
	runStages(t, context.Background(), p.Setup, p.CreateResources)
	assert.Empty(t, h.registry.created)
}

func TestBuildAndPushUseRunTag(t *testing.T) {
	h := newHarness(t, apiAndWorker())
	p := h.plugin
	runStages(t, context.Background(), p.Setup, p.Build, p.Push)

	assert.Equal(t, []string{"shop/api.0-dev.v3:" + testTag}, h.builder.built)
	assert.Equal(t, []string{testAccount + ".dkr.ecr.us-east-1.amazonaws.com/shop/api.0-dev.v3:" + testTag}, h.runner.pushed)
	require.Len(t, h.runner.scripts, 1)
	assert.Contains(t, h.runner.scripts[0], "docker login")
}

func TestSharedImageIsBuiltOncePerRun(t *testing.T) {
	section := map[string]any{
		"images": map[string]any{"core": map[string]any{"dockerFile": "Dockerfile"}},
		"functions": map[string]any{
			"jobs": map[string]any{
				"handler": "src/jobs.handler",
				"events": []any{
					map[string]any{"eventType": "process", "runtime": "nodejs16", "imageId": "core"},
					map[string]any{"eventType": "process", "runtime": "nodejs16", "imageId": "core"},
				},
			},
		},
	}
	h := newHarness(t, section)
	p := h.plugin
	ctx := context.Background()
	runStages(t, ctx, p.Setup, p.Spread, p.CreateResources, p.Build, p.Push)

	assert.Equal(t, []string{"shop/core-dev.v3"}, h.registry.created)
	assert.Equal(t, []string{"shop/core-dev.v3:" + testTag}, h.builder.built)
	assert.Len(t, h.runner.pushed, 1)

	fn, ok := p.Function("jobs")
	require.True(t, ok)
	want := testAccount + ".dkr.ecr.us-east-1.amazonaws.com/shop/core-dev.v3:" + testTag
	for _, idx := range []int{0, 1} {
		ev, err := fn.ContainerEvent(idx)
		require.NoError(t, err)
		url, err := ev.ImageURL(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, url)
	}
}

func TestSetupNormalizesSequencesAndSkipsNullEntries(t *testing.T) {
	section := map[string]any{
		"functions": []any{
			map[string]any{"api": value.AsMap(apiAndWorker()["functions"])["api"]},
			map[string]any{"legacy": nil},
		},
		"images": []any{map[string]any{"broken": nil}},
	}
	h := newHarness(t, section)
	require.NoError(t, h.plugin.Setup(context.Background()))

	assert.Len(t, h.plugin.Functions(), 1)
	_, ok := h.plugin.Function("legacy")
	assert.False(t, ok)
	assert.Empty(t, h.plugin.Images())
}

func TestSetupUsesVariablePopulator(t *testing.T) {
	h := newHarness(t, map[string]any{"functions": "${file(functions.yml)}"})
	h.host.populator = populatorFunc(func(_ context.Context, raw map[string]any) (map[string]any, error) {
		out := value.CopyMap(raw)
		out["functions"] = apiAndWorker()["functions"]
		out["buildConcurrency"] = 2
		return out, nil
	})
	require.NoError(t, h.plugin.Setup(context.Background()))
	assert.Len(t, h.plugin.Functions(), 2)
	assert.Equal(t, 2, h.plugin.buildConcurrency())
}

func TestEmptyConfigurationCompletesEveryStage(t *testing.T) {
	h := newHarness(t, nil)
	p := h.plugin
	runStages(t, context.Background(), p.Setup, p.Spread, p.CheckDependencies, p.CreateResources,
		p.Compile, p.Build, p.Push, p.CompileCloudFormation, p.ModifyExecutionRole, p.CleanupContainers)
	assert.Empty(t, h.registry.created)
	assert.Empty(t, h.builder.built)
	assert.Empty(t, h.host.plugins.spawned)
	assert.Equal(t, constants.DefaultBuildConcurrency, p.buildConcurrency())
}

func TestCompileRunsRequiredToolchains(t *testing.T) {
	h := newHarness(t, nil)
	h.plugin.Deps().EnableGo()
	require.NoError(t, h.plugin.Compile(context.Background()))
	assert.Equal(t, []string{constants.GoCompileCommand}, h.runner.scripts)
}

func TestCompileCloudFormationSpawnsECSPlugin(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.plugin.CompileCloudFormation(ctx))
	assert.Empty(t, h.host.plugins.spawned)

	h.plugin.Deps().EnableECS()
	require.NoError(t, h.plugin.CompileCloudFormation(ctx))
	assert.Equal(t, []string{meta.ECSPluginCompileLifecycle}, h.host.plugins.spawned)
}

func withExecutionRole(doc map[string]any) {
	provider := value.AsMap(doc["provider"])
	provider["iam"] = map[string]any{"servicesPrincipal": []any{"events.amazonaws.com"}}
	provider["compiledCloudFormationTemplate"] = map[string]any{
		"Resources": map[string]any{
			meta.ExecutionRoleResource: map[string]any{
				"Type": "AWS::IAM::Role",
				"Properties": map[string]any{
					"AssumeRolePolicyDocument": map[string]any{
						"Statement": []any{map[string]any{
							"Effect":    "Allow",
							"Principal": map[string]any{"Service": []any{"lambda.amazonaws.com"}},
							"Action":    []any{"sts:AssumeRole"},
						}},
					},
				},
			},
		},
	}
}

func TestModifyExecutionRoleIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, withExecutionRole)
	h.plugin.Deps().EnableECS()
	ctx := context.Background()
	runStages(t, ctx, h.plugin.ModifyExecutionRole, h.plugin.ModifyExecutionRole)

	role, ok := h.host.service.CompiledResource(meta.ExecutionRoleResource)
	require.True(t, ok)
	statements, _ := value.Lookup(value.AsMap(role), "Properties.AssumeRolePolicyDocument.Statement")
	principal := value.AsMap(value.AsMap(value.AsSlice(statements)[0])["Principal"])
	assert.Equal(t, []any{"lambda.amazonaws.com", meta.ECSTasksPrincipal, "events.amazonaws.com"}, principal["Service"])
}

func TestModifyExecutionRoleWithoutRoleOnlyWarns(t *testing.T) {
	h := newHarness(t, nil)
	h.plugin.Deps().EnableECSRolePermission()
	require.NoError(t, h.plugin.ModifyExecutionRole(context.Background()))
	_, ok := h.host.service.CompiledResource(meta.ExecutionRoleResource)
	assert.False(t, ok)
}

func TestCleanupKeepsCurrentTagAndPrunesLocal(t *testing.T) {
	h := newHarness(t, apiAndWorker())
	h.plugin.cfg.PruneLocal = true
	h.registry.images = []registry.ImageID{{Digest: "sha256:1", Tag: "1600000000000"}, {Digest: "sha256:2", Tag: testTag}}
	ctx := context.Background()
	runStages(t, ctx, h.plugin.Setup, h.plugin.CleanupContainers)

	assert.Equal(t, []registry.ImageID{{Digest: "sha256:1", Tag: "1600000000000"}}, h.registry.removed)
	assert.Equal(t, []string{
		testAccount + ".dkr.ecr.us-east-1.amazonaws.com/shop/api.0-dev.v3:" + testTag,
		"shop/api.0-dev.v3:" + testTag,
	}, h.builder.pruned)

	h.registry.images = []registry.ImageID{{Digest: "sha256:2", Tag: testTag}}
	h.registry.removed = nil
	require.NoError(t, h.plugin.CleanupContainers(ctx))
	assert.Empty(t, h.registry.removed)
}

func TestDeleteRemovesEveryRepository(t *testing.T) {
	section := apiAndWorker()
	section["images"] = map[string]any{"core": map[string]any{"dockerFile": "Dockerfile"}}
	h := newHarness(t, section)
	runStages(t, context.Background(), h.plugin.Setup, h.plugin.Delete)
	assert.Equal(t, []string{"shop/api.0-dev.v3", "shop/core-dev.v3"}, h.registry.deleted)
}

func TestHooksSpawnCommands(t *testing.T) {
	h := newHarness(t, nil)
	hooks := h.plugin.Hooks()
	ctx := context.Background()

	require.NoError(t, hooks["package:createDeploymentArtifacts"](ctx))
	require.NoError(t, hooks["before:remove:remove"](ctx))
	assert.Equal(t, []string{CommandBuild, CommandPush, CommandDelete}, h.host.plugins.spawned)

	for _, command := range h.plugin.Commands() {
		for _, event := range command.Lifecycle {
			assert.Contains(t, hooks, command.Name+":"+event)
		}
	}
	assert.Contains(t, h.plugin.VariableSources(), meta.VariableSource)
}

func TestWebpackEntries(t *testing.T) {
	section := apiAndWorker()
	functions := value.AsMap(section["functions"])
	functions["site"] = map[string]any{
		"handler": "web/index.php",
		"events":  []any{map[string]any{"eventType": "httpd", "runtime": "php7"}},
	}
	api := value.AsMap(functions["api"])
	events := value.AsSlice(api["events"])
	value.AsMap(events[0])["handler"] = "src/routes/v2.main"

	h := newHarness(t, section)
	assert.Empty(t, WebpackEntries(h.plugin))
	require.NoError(t, h.plugin.Setup(context.Background()))
	assert.Equal(t, map[string]string{
		"src/api":       "./src/api.js",
		"src/routes/v2": "./src/routes/v2.js",
		"src/worker":    "./src/worker.js",
	}, WebpackEntries(h.plugin))
}
