// Where: internal/function/httpd.go
// What: HTTPD event: a load-balanced HTTP service task.
// Why: Synthesizes the cluster service, listener, routes, and health check of a web container.
package function

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/dockerfiles"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/options"
)

const httpsPort = 443

// newID is swapped in tests.
var newID = uuid.NewString

type httpd struct {
	*container
	spec        *options.HTTPDEvent
	healthRoute string
}

func newHTTPD(fn *scope, shared *sharedState, spec *options.HTTPDEvent, index int) (Event, error) {
	e := &httpd{spec: spec}
	if spec.Runtime.Family() == options.FamilyPHP {
		e.healthRoute = healthPath(newID())
	} else {
		e.healthRoute = healthPath("healthCheck", newID())
	}
	e.container = newContainer(fn, shared, dockerfiles.KindHTTPD, &spec.BaseEvent, &spec.ContainerSpec, index)
	e.tune = func(req *dockerfiles.Request) {
		req.Port = e.port()
		req.HealthRoute = strings.TrimPrefix(e.healthRoute, "/")
	}
	return e, nil
}

func (e *httpd) Type() options.EventType { return options.EventHTTPD }

func (e *httpd) update(spec options.EventSpec) bool {
	typed, ok := spec.(*options.HTTPDEvent)
	if !ok || !e.setSpec(&typed.BaseEvent, &typed.ContainerSpec) {
		return false
	}
	e.spec = typed
	return true
}

func (e *httpd) Spread(context.Context) (*Synthesis, error) { return nil, nil }

func (e *httpd) CheckDependencies(context.Context) error {
	e.checkDependencies(true, false)
	return nil
}

// HealthRoute is the path probed by the load balancer.
func (e *httpd) HealthRoute() string { return e.healthRoute }

func (e *httpd) isPHP() bool { return e.spec.Runtime.Family() == options.FamilyPHP }

// port is explicit, else 443 for TLS listeners of non-PHP runtimes, else 80.
func (e *httpd) port() int {
	if e.spec.Port > 0 {
		return e.spec.Port
	}
	if len(e.spec.CertificateArns) > 0 && !e.isPHP() {
		return httpsPort
	}
	return constants.DefaultHTTPPort
}

func (e *httpd) projection() (map[string]any, error) {
	env := map[string]any{}
	if e.isPHP() {
		_, fn := e.entrypoint()
		env[constants.EnvWebDocumentIndex] = fn
	} else {
		entry, fn := e.entrypoint()
		env[constants.EnvHybridlessRuntime] = true
		env[constants.EnvNodeConnectionReuse] = 1
		env[constants.EnvEntrypoint] = "./" + entry
		env[constants.EnvEntrypointFunc] = fn
		env[constants.EnvPort] = e.port()
		if e.spec.CORS != nil {
			cors, err := json.Marshal(e.spec.CORS)
			if err != nil {
				return nil, errs.Wrap(errs.ConfigInvalid, "function.httpd", err)
			}
			env[constants.EnvCORS] = string(cors)
		}
		env[constants.EnvTimeout] = e.fn.timeout() * 1000
		e.newRelic(e.spec.NewRelicKey, env)
	}
	env[constants.EnvStage] = e.fn.env.Stage
	cloudRefs(env)
	env[constants.EnvECSContainerMetadata] = true
	env[constants.EnvHealthRoute] = e.healthRoute
	return env, nil
}

func (e *httpd) ClusterTask(ctx context.Context) (map[string]any, error) {
	url, err := e.ImageURL(ctx)
	if err != nil {
		return nil, err
	}
	projection, err := e.projection()
	if err != nil {
		return nil, err
	}
	spec := e.spec
	task := map[string]any{
		"name":          e.taskName(),
		"cpu":           taskCPU(&spec.TaskSpec),
		"memory":        e.taskMemory(),
		"port":          e.port(),
		"disableELB":    false,
		"taskRoleArn":   e.taskRole(),
		"image":         url,
		"desiredCount":  taskConcurrency(&spec.TaskSpec),
		"ec2LaunchType": spec.EC2LaunchType,
		"environment":   e.environment(projection),

		"logsMultilinePattern": multilinePattern(spec.LogsMultilinePattern),
	}
	if spec.Priority != 0 && spec.Priority != -1 {
		task["priority"] = spec.Priority
	}
	setIfPresent(task, "autoScale", spec.AutoScale)
	setIfPresent(task, "hostname", spec.Hostname)
	setIfPresent(task, "limitSourceIPs", spec.LimitSourceIPs)
	if h := spec.LimitHeader; h != nil && h.Name != "" {
		task["limitHeader"] = map[string]any{"name": h.Name, "value": h.Value}
	}

	interval, timeout, healthy, unhealthy := healthDefaults(spec.HealthCheck)
	task["healthCheckUri"] = e.healthRoute
	task["healthCheckProtocol"] = "HTTP"
	task["healthCheckInterval"] = interval
	task["healthCheckTimeout"] = timeout
	task["healthCheckHealthyCount"] = healthy
	task["healthCheckUnhealthyCount"] = unhealthy

	paths := make([]any, 0, len(spec.Routes))
	for _, route := range spec.Routes {
		paths = append(paths, map[string]any{
			"path":     route.Path,
			"method":   routeMethod(route),
			"priority": routePriority(route),
		})
	}
	task["path"] = paths
	task["protocols"] = []any{e.listener()}
	return task, nil
}

// listener is HTTPS when certificates are set; the Cognito authorizer
// only applies to TLS listeners.
func (e *httpd) listener() map[string]any {
	spec := e.spec
	if len(spec.CertificateArns) == 0 {
		return map[string]any{"protocol": "HTTP"}
	}
	certs := make([]any, 0, len(spec.CertificateArns))
	for _, arn := range spec.CertificateArns {
		certs = append(certs, arn)
	}
	out := map[string]any{"protocol": "HTTPS", "certificateArns": certs}
	if auth := spec.CognitoAuthorizer; auth != nil {
		out["authorizer"] = map[string]any{
			"poolArn":    auth.PoolArn,
			"clientId":   auth.ClientID,
			"poolDomain": auth.PoolDomain,
		}
	}
	return out
}

func routeMethod(route options.Route) string {
	if route.Method != "" {
		return route.Method
	}
	return constants.DefaultRouteMethod
}

func routePriority(route options.Route) int {
	if route.Priority > 0 {
		return route.Priority
	}
	return constants.DefaultRoutePriority
}

func healthDefaults(h options.HealthCheck) (interval, timeout, healthy, unhealthy int) {
	pick := func(v, fallback int) int {
		if v > 0 {
			return v
		}
		return fallback
	}
	return pick(h.HealthCheckInterval, constants.DefaultHealthCheckInterval),
		pick(h.HealthCheckTimeout, constants.DefaultHealthCheckTimeout),
		pick(h.HealthCheckHealthyCount, constants.DefaultHealthCheckHealthy),
		pick(h.HealthCheckUnhealthyCount, constants.DefaultHealthCheckUnhealthy)
}
