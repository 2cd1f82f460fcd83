// Where: internal/function/lambda.go
// What: Plain lambda event plus the trigger table shared with lambda containers.
// Why: Both lambda variants project protocol triggers the same way; only packaging differs.
package function

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/deps"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/options"
)

// routedRuntime is compared against the event runtime to decide whether a
// plain lambda fans out per route. No runtime carries this value, so plain
// lambdas always emit a single trigger.
const routedRuntime = options.Runtime(options.ProtocolHTTP)

type lambda struct {
	fn    *scope
	index int
	spec  *options.LambdaEvent
}

func newLambda(fn *scope, spec *options.LambdaEvent, index int) Event {
	return &lambda{fn: fn, index: index, spec: spec}
}

func (e *lambda) Index() int              { return e.index }
func (e *lambda) Type() options.EventType { return options.EventLambda }
func (e *lambda) Enabled() bool           { return e.spec.IsEnabled() }

func (e *lambda) update(spec options.EventSpec) bool {
	typed, ok := spec.(*options.LambdaEvent)
	if ok {
		e.spec = typed
	}
	return ok
}

func (e *lambda) CheckDependencies(context.Context) error {
	reg := e.fn.env.Deps
	switch e.spec.Runtime.Family() {
	case options.FamilyNode:
		if !e.fn.env.DisableWebpack {
			reg.EnableWebpack()
		}
	case options.FamilyJava:
		reg.EnableMaven()
	}
	lambdaDependencies(reg, &e.spec.BaseEvent, &e.spec.LambdaSpec)
	return nil
}

func (e *lambda) CreateRequiredResources(context.Context) error { return nil }
func (e *lambda) Build(context.Context) error                   { return nil }
func (e *lambda) Push(context.Context) error                    { return nil }
func (e *lambda) Cleanup(context.Context) error                 { return nil }
func (e *lambda) Delete(context.Context) error                  { return nil }

func (e *lambda) Spread(context.Context) (*Synthesis, error) {
	spec := e.spec
	def := map[string]any{
		"name":             e.fn.lambdaName(),
		"handler":          e.fn.spec.Handler,
		"timeout":          e.fn.timeout(),
		"tracing":          !spec.DisableTracing,
		"versionFunctions": false,
	}
	for k, v := range e.fn.vpcBlock(true) {
		def[k] = v
	}
	if spec.Runtime != "" {
		def["runtime"] = string(spec.Runtime)
	}
	if len(spec.Layers) > 0 {
		layers := make([]any, 0, len(spec.Layers))
		for _, l := range spec.Layers {
			layers = append(layers, l)
		}
		def["layers"] = layers
	}
	if env := stripReserved(userEnvironment(e.fn.spec, &spec.BaseEvent)); len(env) > 0 {
		def["environment"] = env
	}
	lambdaCommon(def, e.fn.spec, &spec.BaseEvent, &spec.LambdaSpec)

	if spec.Protocol != options.ProtocolNone {
		routes := []*options.Route{nil}
		if spec.Runtime == routedRuntime {
			routes = routeRefs(spec.Routes)
		}
		events, err := triggers(e.fn, &spec.LambdaSpec, routes)
		if err != nil {
			return nil, err
		}
		def["events"] = events
	}

	out := &Synthesis{}
	out.addFunction(e.fn.lambdaKey(), def)
	if spec.CognitoAuthorizerArn != "" {
		out.addResource(e.fn.authorizerKey(), authorizerResource(e.fn, spec.CognitoAuthorizerArn))
	}
	return out, nil
}

// authorizerKey is `{service}{Function}{stage}Authorizer`.
func (s *scope) authorizerKey() string { return s.lambdaKey() + "Authorizer" }

// lambdaCommon sets the sizing and concurrency attributes both lambda
// variants share.
func lambdaCommon(def map[string]any, fn *options.Function, base *options.BaseEvent, spec *options.LambdaSpec) {
	if mem := fn.Memory; mem > 0 {
		def["memorySize"] = mem
	} else if base.Memory > 0 {
		def["memorySize"] = base.Memory
	}
	if spec.ReservedConcurrency > 0 {
		def["reservedConcurrency"] = spec.ReservedConcurrency
	}
	if base.Role != "" {
		def["role"] = base.Role
	}
	if base.LogsRetentionInDays > 0 {
		def["logRetentionInDays"] = base.LogsRetentionInDays
	}
	if spec.ProvisionedConcurrency > 0 {
		def["provisionedConcurrency"] = spec.ProvisionedConcurrency
		setIfPresent(def, "concurrencyAutoscaling", spec.ConcurrencyAutoscaling)
	}
}

func lambdaDependencies(reg *deps.Registry, base *options.BaseEvent, spec *options.LambdaSpec) {
	if base.LogsRetentionInDays > 0 {
		reg.EnableLogsRetention()
	}
	if spec.ProvisionedConcurrency > 0 && spec.ConcurrencyAutoscaling != nil {
		reg.EnableProvisionedConcurrency()
	}
}

// userEnvironment merges function then event values.
func userEnvironment(fn *options.Function, base *options.BaseEvent) map[string]any {
	out := map[string]any{}
	for k, v := range fn.Environment {
		out[k] = v
	}
	for k, v := range base.Environment {
		out[k] = v
	}
	return out
}

// stripReserved drops names the lambda service reserves for itself.
func stripReserved(env map[string]any) map[string]any {
	delete(env, constants.EnvAWSRegion)
	delete(env, constants.EnvAWSAccountID)
	return env
}

func routeRefs(routes []options.Route) []*options.Route {
	out := make([]*options.Route, 0, len(routes))
	for i := range routes {
		out = append(out, &routes[i])
	}
	return out
}

// triggers emits one event per route, or a single event when route is nil.
func triggers(fn *scope, spec *options.LambdaSpec, routes []*options.Route) ([]any, error) {
	events := make([]any, 0, len(routes))
	for _, route := range routes {
		body, err := triggerBody(fn, spec, route)
		if err != nil {
			return nil, err
		}
		events = append(events, map[string]any{spec.Protocol.UpstreamKey(): body})
	}
	return events, nil
}

func triggerBody(fn *scope, spec *options.LambdaSpec, route *options.Route) (map[string]any, error) {
	body := map[string]any{}
	setIfPresent(body, "arn", spec.ProtocolArn)
	if spec.QueueBatchSize > 0 {
		body["batchSize"] = spec.QueueBatchSize
	}
	if spec.Protocol == options.ProtocolDynamoStreams {
		body["type"] = "dynamodb"
	}
	setIfPresent(body, "rate", spec.SchedulerRate)
	if spec.SchedulerInput != nil {
		input, err := jsonString(spec.SchedulerInput)
		if err != nil {
			return nil, err
		}
		body["input"] = input
	}
	setIfPresent(body, "filterPolicy", spec.FilterPolicy)
	if spec.S3Bucket != "" {
		body["bucket"] = spec.S3Bucket
		if spec.S3Event != "" {
			body["event"] = spec.S3Event
		}
		if spec.S3BucketExisting {
			body["existing"] = true
		}
		setIfPresent(body, "rules", spec.S3Rules)
	}
	if src := spec.CloudWatchEventSource; src != nil {
		input, err := jsonString(src)
		if err != nil {
			return nil, err
		}
		pattern := map[string]any{"source": []any{src}}
		if spec.CloudWatchDetailType != "" {
			pattern["detail-type"] = []any{spec.CloudWatchDetailType}
		}
		if spec.CloudWatchDetailState != "" {
			pattern["detail"] = map[string]any{"state": []any{spec.CloudWatchDetailState}}
		}
		body["input"] = input
		body["event"] = pattern
	}
	if spec.CloudWatchLogGroup != "" {
		body["logGroup"] = spec.CloudWatchLogGroup
		if spec.CloudWatchLogFilter != "" {
			body["filter"] = spec.CloudWatchLogFilter
		}
	}
	if spec.CognitoTrigger != "" {
		body["pool"] = spec.CognitoUserPoolArn
		body["trigger"] = spec.CognitoTrigger
	}
	if spec.Protocol == options.ProtocolEventBridge {
		if spec.EventBridgeBus != "" {
			body["eventBus"] = spec.EventBridgeBus
		}
		setIfPresent(body, "pattern", spec.EventBridgePattern)
	}

	switch spec.Protocol {
	case options.ProtocolHTTP:
		if route != nil {
			body["path"] = proxyPath(route.Path)
			body["method"] = routeMethod(*route)
		}
		setIfPresent(body, "cors", spec.CORS)
		if spec.CognitoAuthorizerArn != "" {
			body["authorizer"] = map[string]any{
				"type":         "COGNITO_USER_POOLS",
				"authorizerId": map[string]any{"Ref": fn.authorizerKey()},
			}
		}
	case options.ProtocolHTTPALB:
		for k, v := range albTrigger(fn, spec, route) {
			body[k] = v
		}
	}
	return body, nil
}

func albTrigger(fn *scope, spec *options.LambdaSpec, route *options.Route) map[string]any {
	r := options.Route{}
	if route != nil {
		r = *route
	}
	conditions := map[string]any{"path": proxyPath(r.Path)}
	if r.Method != "" {
		conditions["method"] = r.Method
	}
	setIfPresent(conditions, "host", r.Hostname)
	if h := spec.LimitHeader; h != nil {
		conditions["header"] = map[string]any{"name": h.Name, "values": h.Value}
	}
	setIfPresent(conditions, "ip", spec.LimitSourceIPs)

	out := map[string]any{
		"listenerArn": fn.spec.ALBListenerArn,
		"priority":    routePriority(r),
		"conditions":  conditions,
	}
	if spec.HealthCheckRoute != "" {
		interval, timeout, healthy, unhealthy := healthDefaults(spec.HealthCheck)
		out["healthCheck"] = map[string]any{
			"path":                    spec.HealthCheckRoute,
			"intervalSeconds":         interval,
			"timeoutSeconds":          timeout,
			"healthyThresholdCount":   healthy,
			"unhealthyThresholdCount": unhealthy,
		}
	}
	if auth := spec.CognitoAuthorizer; auth != nil {
		out["authorizers"] = map[string]any{"authorizer": map[string]any{
			"type":             "cognito",
			"userPoolArn":      auth.PoolArn,
			"userPoolClientId": auth.ClientID,
			"userPoolDomain":   auth.PoolDomain,
		}}
	}
	return out
}

// authorizerResource is the API gateway Cognito authorizer referenced by http triggers.
func authorizerResource(fn *scope, poolArn string) map[string]any {
	return map[string]any{
		"Type": "AWS::ApiGateway::Authorizer",
		"Properties": map[string]any{
			"AuthorizerResultTtlInSeconds": constants.DefaultAuthorizerTTL,
			"IdentitySource":               constants.DefaultAuthorizerIdentitySrc,
			"Name":                         fn.authorizerKey(),
			"RestApiId":                    map[string]any{"Ref": "ApiGatewayRestApi"},
			"Type":                         "COGNITO_USER_POOLS",
			"ProviderARNs":                 []any{poolArn},
		},
	}
}

// proxyPath maps wildcards to the greedy path parameter.
func proxyPath(p string) string {
	return strings.ReplaceAll(p, "*", "{proxy+}")
}

// jsonString passes strings through and encodes anything else.
func jsonString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", errs.Wrap(errs.ConfigInvalid, "function.trigger", fmt.Errorf("encode %T: %w", v, err))
	}
	return string(raw), nil
}
