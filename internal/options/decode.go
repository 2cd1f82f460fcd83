// Where: internal/options/decode.go
// What: Normalization and typed decoding of the raw hybridless section.
// Why: Stages read typed options; raw maps stay at the host boundary.
package options

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/errs"
)

// Normalize returns a shallow copy of raw where sequence forms of
// functions and images are merged into a single mapping. Later entries
// win on duplicate keys.
func Normalize(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for _, key := range []string{"functions", "images"} {
		items, ok := out[key].([]any)
		if !ok {
			continue
		}
		merged := map[string]any{}
		for _, item := range items {
			for name, spec := range value.AsMap(item) {
				merged[name] = spec
			}
		}
		out[key] = merged
	}
	return out
}

// Decode builds the typed Plugin from a normalized section. Null function
// and image entries are kept as nil so the caller can warn about them.
func Decode(raw map[string]any) (*Plugin, error) {
	const op = "options.Decode"
	plugin := &Plugin{
		Functions: map[string]*Function{},
		Images:    map[string]*Image{},
	}
	if err := decodeInto(raw, plugin); err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, op, err)
	}
	for name, spec := range value.AsMap(raw["functions"]) {
		if spec == nil {
			plugin.Functions[name] = nil
			continue
		}
		fn, err := decodeFunction(value.AsMap(spec))
		if err != nil {
			return nil, errs.Wrap(errs.ConfigInvalid, op, fmt.Errorf("function %s: %w", name, err))
		}
		plugin.Functions[name] = fn
	}
	for id, spec := range value.AsMap(raw["images"]) {
		if spec == nil {
			plugin.Images[id] = nil
			continue
		}
		img := &Image{}
		if err := decodeInto(value.AsMap(spec), img); err != nil {
			return nil, errs.Wrap(errs.ConfigInvalid, op, fmt.Errorf("image %s: %w", id, err))
		}
		plugin.Images[id] = img
	}
	return plugin, nil
}

// FunctionNames returns the configured function names in sorted order.
func (p *Plugin) FunctionNames() []string {
	return sortedKeys(p.Functions)
}

// ImageIDs returns the configured image ids in sorted order.
func (p *Plugin) ImageIDs() []string {
	return sortedKeys(p.Images)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func decodeFunction(raw map[string]any) (*Function, error) {
	fn := &Function{}
	if err := decodeInto(raw, fn); err != nil {
		return nil, err
	}
	if vpcRaw := value.AsMap(raw["vpc"]); vpcRaw != nil {
		vpc := &VPC{}
		if err := decodeInto(vpcRaw, vpc); err != nil {
			return nil, fmt.Errorf("vpc: %w", err)
		}
		vpc.Raw = vpcRaw
		fn.VPC = vpc
	}
	for idx, item := range value.AsSlice(raw["events"]) {
		ev, err := DecodeEvent(value.AsMap(item))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", idx, err)
		}
		fn.Events = append(fn.Events, ev)
	}
	return fn, nil
}

// DecodeEvent selects the variant by eventType and decodes into it.
func DecodeEvent(raw map[string]any) (EventSpec, error) {
	if raw == nil {
		return nil, fmt.Errorf("event must be a mapping")
	}
	kind, ok := ParseEventType(value.AsString(raw["eventType"]))
	if !ok {
		return nil, fmt.Errorf("unknown eventType %q", value.AsString(raw["eventType"]))
	}
	var spec EventSpec
	switch kind {
	case EventHTTPD:
		spec = &HTTPDEvent{}
	case EventProcess:
		spec = &ProcessEvent{}
	case EventScheduledTask:
		spec = &ScheduledTaskEvent{}
	case EventLaunchableTask:
		spec = &LaunchableTaskEvent{}
	case EventLambda:
		spec = &LambdaEvent{}
	case EventLambdaContainer:
		spec = &LambdaContainerEvent{}
	case EventJob:
		spec = &JobEvent{}
	}
	if err := decodeInto(raw, spec); err != nil {
		return nil, err
	}
	spec.Common().EventType = kind
	return spec, nil
}

func decodeInto(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		Squash:           true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
