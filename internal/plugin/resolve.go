// Where: internal/plugin/resolve.go
// What: The `resolveContainerAddress:<function>[:<index>]` variable source.
// Why: Templates reference image URLs before the images are built.
package plugin

import (
	"context"
	"strconv"
	"strings"

	"github.com/hybridless/hybridless/internal/meta"
)

// Unresolved addresses produce one of these messages instead of an error,
// so the host can surface them inline.
const (
	msgUnsupported    = "Hybridless function is not supported."
	msgNoFunctionName = "Function name not specified on hybridless:resolveContainerAddress environment resolution."
	msgUnknown        = "Specified function name not specified on hybridless:resolveContainerAddress environment resolution."
	msgUnresolved     = "hybridless:resolveContainerAddress environment resolution unresolved. "
)

// ResolveVariable refreshes setup and resolves address to `{"value": url}`.
// Only errors from setup or the account lookup are returned as errors.
func (p *Plugin) ResolveVariable(ctx context.Context, address string) (any, error) {
	if err := p.Setup(ctx); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(address, meta.ResolveContainerAddressPrefix) {
		return msgUnsupported, nil
	}
	params := strings.Split(address, ":")[1:]
	if len(params) == 0 || params[0] == "" {
		return msgNoFunctionName, nil
	}
	fn, ok := p.functions[params[0]]
	if !ok {
		return msgUnknown, nil
	}
	if len(params) > 1 {
		index, err := strconv.Atoi(params[1])
		if err != nil {
			return msgUnresolved + address, nil
		}
		ev, err := fn.ContainerEvent(index)
		if err != nil {
			return msgUnresolved + address, nil
		}
		url, err := ev.ImageURL(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": url}, nil
	}
	if ev, ok := fn.FirstContainerEvent(); ok {
		url, err := ev.ImageURL(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": url}, nil
	}
	return msgUnresolved + address, nil
}
