// Where: internal/template/service.go
// What: The service document synthesized resources are written into.
// Why: Events return descriptors and only the orchestrator writes them here.
package template

import (
	"fmt"
	"sync"

	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/meta"
)

// Keys the host adds to the in-memory service that the config schema does not know.
var transientKeys = []string{
	"serverless",
	"serviceObject",
	"pluginsData",
	"serviceFilename",
	"initialServerlessConfig",
	"isDashboardMonitoringPreconfigured",
}

// Service wraps the loosely typed service document. All methods are safe
// for concurrent use.
type Service struct {
	mu  sync.Mutex
	doc map[string]any
}

// NewService takes ownership of a copy of doc.
func NewService(doc map[string]any) *Service {
	return &Service{doc: value.CopyMap(doc)}
}

// Name returns the service name. Both `service: name` and `service: {name: x}` are accepted.
func (s *Service) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := s.doc["service"]
	if m := value.AsMap(raw); m != nil {
		return value.AsString(m["name"])
	}
	return value.AsString(raw)
}

// Stage resolves custom.stage, then provider.stage, then a top-level stage.
func (s *Service) Stage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stage, ok := value.Lookup(s.doc, "custom.stage"); ok && value.AsString(stage) != "" {
		return value.AsString(stage)
	}
	if provider := value.AsMap(s.doc["provider"]); provider != nil {
		return value.AsString(provider["stage"])
	}
	return value.AsString(s.doc["stage"])
}

// Region returns provider.region.
func (s *Service) Region() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	region, _ := value.Lookup(s.doc, "provider.region")
	return value.AsString(region)
}

// Section returns a deep copy of a top-level key.
func (s *Service) Section(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return value.DeepCopy(s.doc[key])
}

// SetSection replaces a top-level key.
func (s *Service) SetSection(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc[key] = v
}

// Plugins lists the plugin references declared by the service.
func (s *Service) Plugins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pluginList(s.doc["plugins"])
}

// AddPlugin appends ref to the plugin list unless it is already present.
func (s *Service) AddPlugin(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := pluginList(s.doc["plugins"])
	for _, existing := range current {
		if existing == ref {
			return
		}
	}
	raw := value.AsMap(s.doc["plugins"])
	if raw != nil {
		// plugins: {modules: [...]}
		raw["modules"] = append(value.AsSlice(raw["modules"]), ref)
		return
	}
	s.doc["plugins"] = append(value.AsSlice(s.doc["plugins"]), ref)
}

func pluginList(raw any) []string {
	if m := value.AsMap(raw); m != nil {
		raw = m["modules"]
	}
	out := []string{}
	for _, item := range value.AsSlice(raw) {
		if name := value.AsString(item); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// ProviderEnvironment copies provider.environment without empty values.
func (s *Service) ProviderEnvironment() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, _ := value.Lookup(s.doc, "provider.environment")
	out := map[string]any{}
	for k, v := range value.AsMap(env) {
		if value.Truthy(v) {
			out[k] = value.DeepCopy(v)
		}
	}
	return out
}

// ServicesPrincipal lists provider.iam.servicesPrincipal.
func (s *Service) ServicesPrincipal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, _ := value.Lookup(s.doc, "provider.iam.servicesPrincipal")
	out := []string{}
	for _, item := range value.AsSlice(raw) {
		if principal := value.AsString(item); principal != "" {
			out = append(out, principal)
		}
	}
	return out
}

// AppendResource sets resources.Resources.<key>.
func (s *Service) AppendResource(key string, resource any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resources := ensureMap(s.doc, "resources")
	ensureMap(resources, "Resources")[key] = resource
}

// AppendFunction merges fns into the functions section. When a key already
// exists the new definition wins, except that both event lists are kept
// with the new events first.
func (s *Service) AppendFunction(fns map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	functions := ensureMap(s.doc, "functions")
	for key, raw := range fns {
		def := value.AsMap(raw)
		if def == nil {
			functions[key] = raw
			continue
		}
		def = value.CopyMap(def)
		existing := value.AsMap(functions[key])
		newEvents, hasNew := def["events"]
		oldEvents, hasOld := existing["events"]
		if hasNew || hasOld {
			merged := append([]any{}, value.AsSlice(newEvents)...)
			merged = append(merged, value.AsSlice(oldEvents)...)
			def["events"] = merged
		}
		functions[key] = def
	}
}

// AppendECSCluster appends a cluster manifest to the ecs list.
func (s *Service) AppendECSCluster(cluster map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc["ecs"] = append(value.AsSlice(s.doc["ecs"]), cluster)
}

// SetCompiledResource sets provider.compiledCloudFormationTemplate.Resources.<key>.
func (s *Service) SetCompiledResource(key string, resource any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	compiled := ensureMap(ensureMap(s.doc, "provider"), "compiledCloudFormationTemplate")
	ensureMap(compiled, "Resources")[key] = resource
}

// CompiledResource returns a copy of a compiled resource.
func (s *Service) CompiledResource(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resource, ok := value.Lookup(s.doc, "provider.compiledCloudFormationTemplate.Resources."+key)
	return value.DeepCopy(resource), ok
}

// AddTrustPrincipal adds principal to the first statement of the role's
// assume-role policy. It reports whether the role exists and whether the
// principal was added.
func (s *Service) AddTrustPrincipal(roleKey, principal string) (found, added bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := value.Lookup(s.doc, "provider.compiledCloudFormationTemplate.Resources."+roleKey)
	role := value.AsMap(raw)
	if !ok || role == nil {
		return false, false, nil
	}
	statements, _ := value.Lookup(role, "Properties.AssumeRolePolicyDocument.Statement")
	list := value.AsSlice(statements)
	if len(list) == 0 {
		return true, false, fmt.Errorf("%s has no assume role statement", roleKey)
	}
	statement := value.AsMap(list[0])
	if statement == nil {
		return true, false, fmt.Errorf("%s assume role statement is not a mapping", roleKey)
	}
	principalBlock := ensureMap(statement, "Principal")
	services := value.AsSlice(principalBlock["Service"])
	for _, existing := range services {
		if value.AsString(existing) == principal {
			return true, false, nil
		}
	}
	principalBlock["Service"] = append(services, principal)
	return true, true, nil
}

// Document returns a deep copy of the whole document.
func (s *Service) Document() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return value.CopyMap(s.doc)
}

// ValidationDocument returns a copy without the host's transient keys.
func (s *Service) ValidationDocument() map[string]any {
	doc := s.Document()
	for _, key := range transientKeys {
		delete(doc, key)
	}
	return doc
}

// Output is the artifact written after packaging.
func (s *Service) Output() map[string]any {
	doc := s.Document()
	out := map[string]any{
		"service":   doc["service"],
		"functions": value.CopyMap(value.AsMap(doc["functions"])),
		"resources": value.CopyMap(value.AsMap(doc["resources"])),
		"ecs":       value.AsSlice(doc["ecs"]),
	}
	if out["ecs"] == nil {
		out["ecs"] = []any{}
	}
	compiled, _ := value.Lookup(doc, "provider.compiledCloudFormationTemplate")
	out["provider"] = map[string]any{
		"name":                           value.AsStringDefault(value.AsMap(doc["provider"])["name"], meta.ProviderName),
		"compiledCloudFormationTemplate": value.CopyMap(value.AsMap(compiled)),
	}
	return out
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if m := value.AsMap(parent[key]); m != nil {
		parent[key] = m
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}
