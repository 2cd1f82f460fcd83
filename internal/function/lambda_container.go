// Where: internal/function/lambda_container.go
// What: Lambda container event: a function deployed from an image.
// Why: Image-packaged lambdas need both the image lifecycle and the trigger table.
package function

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/dockerfiles"
	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/options"
)

type lambdaContainer struct {
	*container
	spec *options.LambdaContainerEvent
}

func newLambdaContainer(fn *scope, shared *sharedState, spec *options.LambdaContainerEvent, index int) (Event, error) {
	e := &lambdaContainer{spec: spec}
	e.container = newContainer(fn, shared, dockerfiles.KindLambda, &spec.BaseEvent, &spec.ContainerSpec, index)
	return e, nil
}

func (e *lambdaContainer) Type() options.EventType { return options.EventLambdaContainer }

func (e *lambdaContainer) update(spec options.EventSpec) bool {
	typed, ok := spec.(*options.LambdaContainerEvent)
	if !ok || !e.setSpec(&typed.BaseEvent, &typed.ContainerSpec) {
		return false
	}
	e.spec = typed
	return true
}

func (e *lambdaContainer) CheckDependencies(context.Context) error {
	e.checkDependencies(false, false)
	lambdaDependencies(e.fn.env.Deps, &e.spec.BaseEvent, &e.spec.LambdaSpec)
	return nil
}

func (e *lambdaContainer) projection() (map[string]any, error) {
	entry, fn := e.entrypoint()
	env := map[string]any{
		constants.EnvEntrypoint:     entry,
		constants.EnvEntrypointFunc: fn,
		constants.EnvStage:          e.fn.env.Stage,
	}
	e.nodeReuse(env)
	if e.spec.Protocol == options.ProtocolHTTPALB && e.spec.CORS != nil {
		cors, err := json.Marshal(e.spec.CORS)
		if err != nil {
			return nil, errs.Wrap(errs.ConfigInvalid, "function.lambdaContainer", err)
		}
		env[constants.EnvCORS] = string(cors)
	}
	return env, nil
}

func (e *lambdaContainer) Spread(ctx context.Context) (*Synthesis, error) {
	const op = "function.lambdaContainer.Spread"
	spec := e.spec
	log := e.fn.env.logger()
	if spec.Protocol == "" {
		log.Error(fmt.Sprintf("Missing protocol for lambda container event %s. Can't continue!", e.fn.lambdaKey()))
		return nil, errs.New(errs.ConfigInvalid, op, "missing protocol for lambda container event %s", e.fn.lambdaKey())
	}
	if spec.Protocol == options.ProtocolHTTPALB && !value.IsSet(e.fn.spec.ALBListenerArn) {
		log.Error("Function event of type httpAlb does require upper element (function) to have albListenerArn set! can't continue.")
		return nil, errs.New(errs.ConfigInvalid, op, "httpAlb event of %s requires albListenerArn", e.fn.name)
	}
	url, err := e.ImageURL(ctx)
	if err != nil {
		return nil, err
	}
	projection, err := e.projection()
	if err != nil {
		return nil, err
	}
	def := map[string]any{
		"name":        e.fn.lambdaName(),
		"image":       url,
		"environment": stripReserved(e.environment(projection)),
		"timeout":     e.fn.timeout(),
		"tracing":     !spec.DisableTracing,
	}
	for k, v := range e.fn.vpcBlock(true) {
		def[k] = v
	}
	lambdaCommon(def, e.fn.spec, &spec.BaseEvent, &spec.LambdaSpec)

	switch {
	case spec.Protocol == options.ProtocolNone:
		def["events"] = []any{}
	case spec.Protocol.AcceptsRoutes():
		if len(spec.Routes) > 0 {
			events, err := triggers(e.fn, &spec.LambdaSpec, routeRefs(spec.Routes))
			if err != nil {
				return nil, err
			}
			def["events"] = events
		}
	default:
		events, err := triggers(e.fn, &spec.LambdaSpec, []*options.Route{nil})
		if err != nil {
			return nil, err
		}
		def["events"] = events
	}

	out := &Synthesis{}
	out.addFunction(e.fn.lambdaKey(), def)
	if spec.Protocol == options.ProtocolHTTP && spec.CognitoAuthorizerArn != "" {
		out.addResource(e.fn.authorizerKey(), authorizerResource(e.fn, spec.CognitoAuthorizerArn))
	}
	return out, nil
}
