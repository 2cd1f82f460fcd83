// Where: internal/function/lambda_test.go
// What: Tests for plain and container lambda synthesis.
// Why: Trigger tables and keys are consumed by the deployment framework as-is.
package function

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridless/hybridless/internal/deps"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/options"
)

func lambdaEvent(protocol options.Protocol, extra ...func(*options.LambdaEvent)) *options.LambdaEvent {
	ev := &options.LambdaEvent{
		BaseEvent:  options.BaseEvent{EventType: options.EventLambda, Runtime: options.RuntimeNode18},
		LambdaSpec: options.LambdaSpec{Protocol: protocol},
	}
	for _, fn := range extra {
		fn(ev)
	}
	return ev
}

func lambdaContainerEvent(protocol options.Protocol, extra ...func(*options.LambdaContainerEvent)) *options.LambdaContainerEvent {
	ev := &options.LambdaContainerEvent{
		BaseEvent:  options.BaseEvent{EventType: options.EventLambdaContainer, Runtime: options.RuntimeNode18},
		LambdaSpec: options.LambdaSpec{Protocol: protocol},
	}
	for _, fn := range extra {
		fn(ev)
	}
	return ev
}

func spreadOne(t *testing.T, fx *fixture, name string, spec *options.Function) (*Synthesis, error) {
	t.Helper()
	fn, err := New(fx.env, name, spec)
	require.NoError(t, err)
	return fn.Spread(context.Background())
}

func TestLambdaQueueTrigger(t *testing.T) {
	fx := newFixture(t)
	out, err := spreadOne(t, fx, "worker", &options.Function{
		Handler:     "src/worker.handler",
		Environment: map[string]any{"TABLE": "orders", "AWS_REGION": "eu-west-1"},
		Events: []options.EventSpec{lambdaEvent(options.ProtocolSQS, func(ev *options.LambdaEvent) {
			ev.ProtocolArn = "arn:aws:sqs:us-east-1:1:orders"
			ev.QueueBatchSize = 10
			ev.Layers = []string{"arn:layer:1"}
		})},
	})
	require.NoError(t, err)

	def := out.Functions["ShopWorkerdev"].(map[string]any)
	assert.Equal(t, "Shop-Worker-dev", def["name"])
	assert.Equal(t, "src/worker.handler", def["handler"])
	assert.Equal(t, "nodejs18", def["runtime"])
	assert.Equal(t, 30, def["timeout"])
	assert.Equal(t, true, def["tracing"])
	assert.Equal(t, false, def["versionFunctions"])
	assert.Equal(t, []any{"arn:layer:1"}, def["layers"])
	assert.Equal(t, map[string]any{"TABLE": "orders"}, def["environment"])
	assert.Equal(t, []any{map[string]any{"sqs": map[string]any{
		"arn":       "arn:aws:sqs:us-east-1:1:orders",
		"batchSize": 10,
	}}}, def["events"])
	assert.Empty(t, out.Resources)
}

func TestLambdaIgnoresRoutes(t *testing.T) {
	fx := newFixture(t)
	out, err := spreadOne(t, fx, "api", &options.Function{
		Handler: "src/api.handler",
		Events: []options.EventSpec{lambdaEvent(options.ProtocolHTTP, func(ev *options.LambdaEvent) {
			ev.Routes = []options.Route{{Path: "/a"}, {Path: "/b"}}
			ev.CognitoAuthorizerArn = "arn:aws:cognito-idp:pool/1"
		})},
	})
	require.NoError(t, err)

	def := out.Functions["ShopApidev"].(map[string]any)
	events := def["events"].([]any)
	require.Len(t, events, 1)
	body := events[0].(map[string]any)["http"].(map[string]any)
	assert.NotContains(t, body, "path")
	assert.Equal(t, map[string]any{"Ref": "ShopApidevAuthorizer"}, body["authorizer"].(map[string]any)["authorizerId"])
	assert.Contains(t, out.Resources, "ShopApidevAuthorizer")
}

func TestLambdaNoneProtocolHasNoEvents(t *testing.T) {
	fx := newFixture(t)
	out, err := spreadOne(t, fx, "worker", &options.Function{
		Handler: "src/worker.handler",
		Memory:  256,
		Events: []options.EventSpec{lambdaEvent(options.ProtocolNone, func(ev *options.LambdaEvent) {
			ev.Memory = 2048
			ev.ReservedConcurrency = 4
		})},
	})
	require.NoError(t, err)
	def := out.Functions["ShopWorkerdev"].(map[string]any)
	assert.NotContains(t, def, "events")
	assert.NotContains(t, def, "environment")
	assert.Equal(t, 256, def["memorySize"])
	assert.Equal(t, 4, def["reservedConcurrency"])
}

func TestLambdaTriggerBodies(t *testing.T) {
	fx := newFixture(t)
	fn := &scope{env: fx.env, name: "worker", spec: &options.Function{ALBListenerArn: "arn:listener"}}

	body, err := triggerBody(fn, &options.LambdaSpec{
		Protocol:              options.ProtocolCloudWatch,
		CloudWatchEventSource: "aws.ecs",
		CloudWatchDetailType:  "ECS Task State Change",
		CloudWatchDetailState: "STOPPED",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "aws.ecs", body["input"])
	assert.Equal(t, map[string]any{
		"source":      []any{"aws.ecs"},
		"detail-type": []any{"ECS Task State Change"},
		"detail":      map[string]any{"state": []any{"STOPPED"}},
	}, body["event"])

	body, err = triggerBody(fn, &options.LambdaSpec{
		Protocol:       options.ProtocolScheduler,
		SchedulerRate:  "rate(5 minutes)",
		SchedulerInput: map[string]any{"job": "sync"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "rate(5 minutes)", body["rate"])
	assert.Equal(t, `{"job":"sync"}`, body["input"])

	body, err = triggerBody(fn, &options.LambdaSpec{Protocol: options.ProtocolDynamoStreams, ProtocolArn: "arn:stream"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"arn": "arn:stream", "type": "dynamodb"}, body)

	body, err = triggerBody(fn, &options.LambdaSpec{Protocol: options.ProtocolS3, S3Bucket: "uploads", S3Event: "s3:ObjectCreated:*", S3BucketExisting: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"bucket": "uploads", "event": "s3:ObjectCreated:*", "existing": true}, body)

	route := &options.Route{Path: "/items/*", Method: "POST", Priority: 7}
	body, err = triggerBody(fn, &options.LambdaSpec{
		Protocol:    options.ProtocolHTTPALB,
		LimitHeader: &options.Header{Name: "x-key", Value: []any{"a"}},
	}, route)
	require.NoError(t, err)
	assert.Equal(t, "arn:listener", body["listenerArn"])
	assert.Equal(t, 7, body["priority"])
	assert.Equal(t, map[string]any{
		"path":   "/items/{proxy+}",
		"method": "POST",
		"header": map[string]any{"name": "x-key", "values": []any{"a"}},
	}, body["conditions"])
}

func TestLambdaContainerRoutes(t *testing.T) {
	fx := newFixture(t)
	out, err := spreadOne(t, fx, "api", &options.Function{
		Handler:     "src/api.handler",
		Environment: map[string]any{"AWS_ACCOUNT_ID": "1", "MODE": "x"},
		Events: []options.EventSpec{lambdaContainerEvent(options.ProtocolHTTP, func(ev *options.LambdaContainerEvent) {
			ev.Routes = []options.Route{{Path: "/users/*"}, {Path: "/health", Method: "GET"}}
			ev.CognitoAuthorizerArn = "arn:aws:cognito-idp:pool/1"
		})},
	})
	require.NoError(t, err)

	def := out.Functions["ShopApidev"].(map[string]any)
	assert.Equal(t, urlFor("shop/api.0-dev.v3"), def["image"])
	assert.NotContains(t, def, "handler")
	env := def["environment"].(map[string]any)
	assert.NotContains(t, env, "AWS_ACCOUNT_ID")
	assert.Equal(t, "x", env["MODE"])
	assert.Equal(t, "src/api", env["ENTRYPOINT"])
	assert.Equal(t, 1, env["AWS_NODEJS_CONNECTION_REUSE_ENABLED"])

	events := def["events"].([]any)
	require.Len(t, events, 2)
	first := events[0].(map[string]any)["http"].(map[string]any)
	assert.Equal(t, "/users/{proxy+}", first["path"])
	assert.Equal(t, "ANY", first["method"])
	second := events[1].(map[string]any)["http"].(map[string]any)
	assert.Equal(t, "GET", second["method"])
	assert.Contains(t, out.Resources, "ShopApidevAuthorizer")
}

func TestLambdaContainerRoutedProtocolWithoutRoutes(t *testing.T) {
	fx := newFixture(t)
	out, err := spreadOne(t, fx, "api", &options.Function{
		Handler: "src/api.handler",
		Events:  []options.EventSpec{lambdaContainerEvent(options.ProtocolHTTP)},
	})
	require.NoError(t, err)
	assert.NotContains(t, out.Functions["ShopApidev"].(map[string]any), "events")

	out, err = spreadOne(t, fx, "api", &options.Function{
		Handler: "src/api.handler",
		Events:  []options.EventSpec{lambdaContainerEvent(options.ProtocolNone)},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{}, out.Functions["ShopApidev"].(map[string]any)["events"])
}

func TestLambdaContainerRequiresProtocol(t *testing.T) {
	fx := newFixture(t)
	_, err := spreadOne(t, fx, "api", &options.Function{
		Handler: "src/api.handler",
		Events:  []options.EventSpec{lambdaContainerEvent("")},
	})
	require.ErrorIs(t, err, errs.Of(errs.ConfigInvalid))
}

func TestLambdaContainerALBRequiresListener(t *testing.T) {
	fx := newFixture(t)
	spec := &options.Function{
		Handler: "src/api.handler",
		Events: []options.EventSpec{lambdaContainerEvent(options.ProtocolHTTPALB, func(ev *options.LambdaContainerEvent) {
			ev.Routes = []options.Route{{Path: "/*"}}
		})},
	}
	_, err := spreadOne(t, fx, "api", spec)
	require.ErrorIs(t, err, errs.Of(errs.ConfigInvalid))

	spec.ALBListenerArn = "arn:listener"
	out, err := spreadOne(t, fx, "api", spec)
	require.NoError(t, err)
	events := out.Functions["ShopApidev"].(map[string]any)["events"].([]any)
	require.Len(t, events, 1)
	assert.Contains(t, events[0], "alb")
	assert.Empty(t, out.Resources)
}

func TestLambdaDependencies(t *testing.T) {
	fx := newFixture(t)
	fn, err := New(fx.env, "api", &options.Function{
		Handler: "src/api.handler",
		Events: []options.EventSpec{lambdaEvent(options.ProtocolSQS, func(ev *options.LambdaEvent) {
			ev.LogsRetentionInDays = 7
			ev.ProvisionedConcurrency = 2
			ev.ConcurrencyAutoscaling = map[string]any{"maximum": 10}
		})},
	})
	require.NoError(t, err)
	require.NoError(t, fn.CheckDependencies(context.Background()))
	assert.Equal(t, []deps.Flag{deps.Webpack, deps.LogsRetention, deps.ProvisionedConcurrency}, fx.env.Deps.Required())
}
