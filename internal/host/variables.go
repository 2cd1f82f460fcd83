// Where: internal/host/variables.go
// What: `${source:address}` reference resolution over the service document.
// Why: Sections are resolved before plugins read them; plugin sources resolve lazily.
package host

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/ports"
	"github.com/hybridless/hybridless/internal/template"
)

// Innermost reference first, so `${self:custom.${opt:stage}}` resolves inside out.
var referencePattern = regexp.MustCompile(`\$\{([^${}]+)\}`)

const (
	maxSelfDepth = 10
	maxPasses    = 64
)

// Variables implements ports.VariablePopulator.
type Variables struct {
	service   *template.Service
	options   map[string]string
	sources   map[string]ports.VariableSource
	lookupEnv func(string) (string, bool)
}

func newVariables(service *template.Service, options map[string]string) *Variables {
	return &Variables{
		service:   service,
		options:   options,
		sources:   map[string]ports.VariableSource{},
		lookupEnv: os.LookupEnv,
	}
}

// AddSource registers a plugin variable source under name.
func (v *Variables) AddSource(name string, source ports.VariableSource) {
	v.sources[name] = source
}

// PopulateObject returns a copy of raw with every reference resolved.
func (v *Variables) PopulateObject(ctx context.Context, raw map[string]any) (map[string]any, error) {
	out, err := v.populate(ctx, raw, 0)
	if err != nil {
		return nil, err
	}
	return value.AsMap(out), nil
}

// PopulateSection resolves one top-level key of the service in place.
func (v *Variables) PopulateSection(ctx context.Context, key string) error {
	raw := v.service.Section(key)
	if raw == nil {
		return nil
	}
	out, err := v.populate(ctx, raw, 0)
	if err != nil {
		return err
	}
	v.service.SetSection(key, out)
	return nil
}

func (v *Variables) populate(ctx context.Context, node any, depth int) (any, error) {
	switch typed := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			resolved, err := v.populate(ctx, child, depth)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, child := range typed {
			resolved, err := v.populate(ctx, child, depth)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		return v.populateString(ctx, typed, depth)
	default:
		return node, nil
	}
}

// populateString keeps non-string results only when the reference spans
// the whole string.
func (v *Variables) populateString(ctx context.Context, s string, depth int) (any, error) {
	for range maxPasses {
		loc := referencePattern.FindStringSubmatchIndex(s)
		if loc == nil {
			return s, nil
		}
		resolved, err := v.resolve(ctx, s[loc[2]:loc[3]], depth)
		if err != nil {
			return nil, err
		}
		if loc[0] == 0 && loc[1] == len(s) {
			str, ok := resolved.(string)
			if !ok {
				return resolved, nil
			}
			s = str
			continue
		}
		s = s[:loc[0]] + stringify(resolved) + s[loc[1]:]
	}
	return nil, errs.New(errs.ConfigInvalid, "host.populate", "too many nested references in %q", s)
}

func (v *Variables) resolve(ctx context.Context, expr string, depth int) (any, error) {
	const op = "host.resolveVariable"
	address, fallback, hasFallback := splitFallback(expr)
	source, addr, _ := strings.Cut(address, ":")
	source = strings.TrimSpace(source)
	addr = strings.TrimSpace(addr)

	resolved, reason, err := v.lookup(ctx, source, addr, depth)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return resolved, nil
	}
	if hasFallback {
		return fallback, nil
	}
	return nil, errs.New(errs.ConfigInvalid, op, "cannot resolve variable ${%s}: %s", address, reason)
}

// lookup returns a non-empty reason when the reference is unresolved.
func (v *Variables) lookup(ctx context.Context, source, addr string, depth int) (any, string, error) {
	switch source {
	case "env":
		if val, ok := v.lookupEnv(addr); ok {
			return val, "", nil
		}
		return nil, "environment variable is not set", nil
	case "opt":
		if val := v.options[addr]; val != "" {
			return val, "", nil
		}
		return nil, "option is not set", nil
	case "sls":
		if addr == "stage" {
			return v.service.Stage(), "", nil
		}
		return nil, "unsupported sls variable", nil
	case "self":
		if depth >= maxSelfDepth {
			return nil, "", errs.New(errs.ConfigInvalid, "host.resolveVariable", "self reference %q is circular", addr)
		}
		found, ok := value.Lookup(v.service.Document(), addr)
		if !ok || found == nil {
			return nil, "path does not exist", nil
		}
		resolved, err := v.populate(ctx, found, depth+1)
		return resolved, "", err
	}
	src, ok := v.sources[source]
	if !ok {
		return nil, "", errs.New(errs.ConfigInvalid, "host.resolveVariable", "unknown variable source %q", source)
	}
	result, err := src.Resolve(ctx, addr)
	if err != nil {
		return nil, "", err
	}
	if m := value.AsMap(result); m != nil {
		if val, ok := m["value"]; ok {
			return val, "", nil
		}
	}
	if msg, ok := result.(string); ok && msg != "" {
		return nil, msg, nil
	}
	return nil, "source returned no value", nil
}

func splitFallback(expr string) (string, any, bool) {
	address, rest, ok := strings.Cut(expr, ",")
	if !ok {
		return strings.TrimSpace(expr), nil, false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) >= 2 {
		first, last := rest[0], rest[len(rest)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			rest = rest[1 : len(rest)-1]
		}
	}
	return strings.TrimSpace(address), rest, true
}

func stringify(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}
