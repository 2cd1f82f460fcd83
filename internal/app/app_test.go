// Where: internal/app/app_test.go
// What: End-to-end command tests over the in-process host with fake AWS and docker.
// Why: Commands wire the host, orchestrator and prompts together.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/image"
	"github.com/hybridless/hybridless/internal/interaction"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/registry"
	"github.com/hybridless/hybridless/internal/runner"
)

const (
	testAccount = "123456789012"
	testTag     = "1700000000000"
	testRepo    = "shop/api.0-dev.v3"
)

const serviceYAML = `service: shop
provider:
  name: aws
  stage: dev
  region: us-east-1
hybridless:
  functions:
    api:
      handler: src/api.handler
      events:
        - eventType: httpd
          runtime: nodejs18
          routes:
            - path: /*
              method: ANY
    worker:
      handler: src/worker.handler
      events:
        - eventType: lambda
          runtime: nodejs18
          protocol: sqs
          protocolArn: arn:aws:sqs:us-east-1:1:orders
          queueBatchSize: 10
`

type fakeRegistry struct {
	mu      sync.Mutex
	created []string
	deleted []string
	images  []registry.ImageID
	removed []registry.ImageID
}

func (f *fakeRegistry) DescribeRepositories(context.Context, string) (registry.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := registry.Page{}
	for _, name := range f.created {
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

func (f *fakeRegistry) PutLifecyclePolicy(context.Context, string, string) error { return nil }

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

type fakeProvider struct {
	registry *fakeRegistry
}

func (f *fakeProvider) Name() string                                   { return meta.ProviderName }
func (f *fakeProvider) Registry(context.Context) (registry.API, error) { return f.registry, nil }
func (f *fakeProvider) AccountID(context.Context) (string, error)      { return testAccount, nil }

type fakeBuilder struct {
	mu     sync.Mutex
	built  []string
	closed bool
}

func (f *fakeBuilder) BuildImage(_ context.Context, _ []builder.File, name string, _ map[string]string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, name)
	return []string{strings.Repeat("a", 64)}, nil
}

func (f *fakeBuilder) TagImage(context.Context, string, string) error { return nil }
func (f *fakeBuilder) DeleteImage(context.Context, string) error      { return nil }

func (f *fakeBuilder) Close() error {
	f.closed = true
	return nil
}

type fakeRunner struct {
	mu     sync.Mutex
	pushed []string
}

func (f *fakeRunner) RunCapture(_ context.Context, _ string, _ string, args ...string) (runner.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, args[len(args)-1])
	return runner.Output{}, nil
}

func (f *fakeRunner) RunShell(context.Context, string, string) (runner.Output, error) {
	return runner.Output{Stdout: "Login Succeeded"}, nil
}

type testEnv struct {
	dir      string
	registry *fakeRegistry
	builder  *fakeBuilder
	runner   *fakeRunner
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	deps     Dependencies
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, meta.ServiceFile), []byte(serviceYAML), 0o644); err != nil {
		t.Fatalf("write service: %v", err)
	}
	env := &testEnv{
		dir:      dir,
		registry: &fakeRegistry{},
		builder:  &fakeBuilder{},
		runner:   &fakeRunner{},
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
	}
	env.deps = Dependencies{
		WorkDir: dir,
		Out:     env.out,
		ErrOut:  env.errOut,
		Log:     logger.Nop(),
		Now:     func() time.Time { return time.UnixMilli(1700000000000) },
		Runner:  env.runner,
		NewBuilder: func() (image.Builder, io.Closer, error) {
			return env.builder, env.builder, nil
		},
		Provider: &fakeProvider{registry: env.registry},
	}
	return env
}

func withTerminal(t *testing.T, tty bool) {
	t.Helper()
	orig := interaction.IsTerminal
	interaction.IsTerminal = func(*os.File) bool { return tty }
	t.Cleanup(func() { interaction.IsTerminal = orig })
}

func TestRunVersion(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"version"}, env.deps); code != 0 {
		t.Fatalf("unexpected exit code: %d", code)
	}
	if strings.TrimSpace(env.out.String()) == "" {
		t.Fatalf("expected version output")
	}
}

func TestRunPackageWritesTemplate(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"package"}, env.deps); code != 0 {
		t.Fatalf("package failed: %s", env.errOut.String())
	}

	data, err := os.ReadFile(filepath.Join(env.dir, meta.OutputDir, meta.TemplateFile+".json"))
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode template: %v", err)
	}
	if _, ok := value.AsMap(out["functions"])["ShopWorkerdev"]; !ok {
		t.Fatalf("expected worker lambda in template: %v", out["functions"])
	}
	if len(value.AsSlice(out["ecs"])) != 1 {
		t.Fatalf("expected one cluster, got %v", out["ecs"])
	}
	principals, _ := value.Lookup(out, "provider.compiledCloudFormationTemplate.Resources.IamRoleLambdaExecution.Properties.AssumeRolePolicyDocument.Statement")
	statement := value.AsMap(value.AsSlice(principals)[0])
	services := value.AsSlice(value.AsMap(statement["Principal"])["Service"])
	if !reflect.DeepEqual(services, []any{"lambda.amazonaws.com", meta.ECSTasksPrincipal}) {
		t.Fatalf("unexpected trust principals: %v", services)
	}

	if !reflect.DeepEqual(env.registry.created, []string{testRepo}) {
		t.Fatalf("unexpected repositories: %v", env.registry.created)
	}
	if !reflect.DeepEqual(env.builder.built, []string{testRepo + ":" + testTag}) {
		t.Fatalf("unexpected builds: %v", env.builder.built)
	}
	wantPush := testAccount + ".dkr.ecr.us-east-1.amazonaws.com/" + testRepo + ":" + testTag
	if !reflect.DeepEqual(env.runner.pushed, []string{wantPush}) {
		t.Fatalf("unexpected pushes: %v", env.runner.pushed)
	}
	if !env.builder.closed {
		t.Fatalf("expected builder to be closed")
	}
	if !strings.Contains(env.out.String(), "Package complete") {
		t.Fatalf("expected summary, got %q", env.out.String())
	}
}

func TestRunPackageYAMLToCustomPath(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"package", "--format", "yaml", "--out", "dist/template.yml"}, env.deps); code != 0 {
		t.Fatalf("package failed: %s", env.errOut.String())
	}
	data, err := os.ReadFile(filepath.Join(env.dir, "dist", "template.yml"))
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if !strings.Contains(string(data), "service: shop") {
		t.Fatalf("unexpected yaml: %s", data)
	}
}

func TestRunResolve(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"resolve", "${hybridless:resolveContainerAddress:api:0}"}, env.deps); code != 0 {
		t.Fatalf("resolve failed: %s", env.errOut.String())
	}
	want := testAccount + ".dkr.ecr.us-east-1.amazonaws.com/" + testRepo + ":" + testTag
	if got := strings.TrimSpace(env.out.String()); got != want {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestRunResolveUnknownFunctionPrintsMessage(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"resolve", "resolveContainerAddress:missing"}, env.deps); code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(env.errOut.String(), "Specified function name not specified") {
		t.Fatalf("unexpected message: %s", env.errOut.String())
	}
}

func TestRunEntries(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"entries"}, env.deps); code != 0 {
		t.Fatalf("entries failed: %s", env.errOut.String())
	}
	var entries map[string]string
	if err := json.Unmarshal(env.out.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	want := map[string]string{"src/api": "./src/api.js", "src/worker": "./src/worker.js"}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("unexpected entries: %v", entries)
	}
}

func TestRunExecQualifiesCommandNames(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"exec", "create"}, env.deps); code != 0 {
		t.Fatalf("exec failed: %s", env.errOut.String())
	}
	if !reflect.DeepEqual(env.registry.created, []string{testRepo}) {
		t.Fatalf("unexpected repositories: %v", env.registry.created)
	}
	if len(env.builder.built) != 0 {
		t.Fatalf("create must not build: %v", env.builder.built)
	}
	if !strings.Contains(env.out.String(), "Spawning hybridless:create") {
		t.Fatalf("expected qualified command in output, got %q", env.out.String())
	}
}

func TestRunBuildAllBuildsWithoutPushing(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"build-all"}, env.deps); code != 0 {
		t.Fatalf("build-all failed: %s", env.errOut.String())
	}
	if len(env.builder.built) != 1 || len(env.runner.pushed) != 0 {
		t.Fatalf("unexpected build/push: %v %v", env.builder.built, env.runner.pushed)
	}
}

func TestRunCleanupKeepsGivenTag(t *testing.T) {
	env := newTestEnv(t)
	env.registry.images = []registry.ImageID{{Digest: "sha256:1", Tag: "1600000000000"}, {Digest: "sha256:2", Tag: "1650000000000"}}
	if code := Run([]string{"cleanup", "--keep", "1650000000000"}, env.deps); code != 0 {
		t.Fatalf("cleanup failed: %s", env.errOut.String())
	}
	want := []registry.ImageID{{Digest: "sha256:1", Tag: "1600000000000"}}
	if !reflect.DeepEqual(env.registry.removed, want) {
		t.Fatalf("unexpected removals: %v", env.registry.removed)
	}
}

func TestRunDeleteRequiresConfirmation(t *testing.T) {
	withTerminal(t, false)
	env := newTestEnv(t)
	if code := Run([]string{"delete"}, env.deps); code != 1 {
		t.Fatalf("expected refusal, got %d", code)
	}
	if len(env.registry.deleted) != 0 {
		t.Fatalf("nothing should be deleted: %v", env.registry.deleted)
	}
	if code := Run([]string{"delete", "--yes"}, env.deps); code != 0 {
		t.Fatalf("delete failed: %s", env.errOut.String())
	}
	if !reflect.DeepEqual(env.registry.deleted, []string{testRepo}) {
		t.Fatalf("unexpected deletions: %v", env.registry.deleted)
	}
}

func TestRunRemoveFiresDelete(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"remove", "-y"}, env.deps); code != 0 {
		t.Fatalf("remove failed: %s", env.errOut.String())
	}
	if !reflect.DeepEqual(env.registry.deleted, []string{testRepo}) {
		t.Fatalf("unexpected deletions: %v", env.registry.deleted)
	}
}

func TestRunMissingServiceFileFails(t *testing.T) {
	env := newTestEnv(t)
	if code := Run([]string{"--config", "missing.yml", "entries"}, env.deps); code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
}

func TestLoadEnvFileAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "custom.env")
	if err := os.WriteFile(path, []byte("HYBRIDLESS_LEDGER_TABLE=tags\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("HYBRIDLESS_LEDGER_TABLE", "")
	os.Unsetenv("HYBRIDLESS_LEDGER_TABLE")
	loadEnvFile(path, env.deps)
	cli := CLI{}
	applyEnvDefaults(&cli)
	if cli.LedgerTable != "tags" {
		t.Fatalf("unexpected ledger table: %q", cli.LedgerTable)
	}
}

func TestQualify(t *testing.T) {
	if got := qualify("create"); got != "hybridless:create" {
		t.Fatalf("unexpected: %s", got)
	}
	if got := qualify("serverless-ecs-plugin:compile"); got != "serverless-ecs-plugin:compile" {
		t.Fatalf("unexpected: %s", got)
	}
}
