// Where: internal/plugin/entries.go
// What: Transpiler entry map for node handlers.
// Why: The bundler needs one entry per handler module of node functions.
package plugin

import (
	"strings"

	"github.com/hybridless/hybridless/internal/options"
)

// WebpackEntries maps every node handler module to `./<module>.js`. A
// function counts as node when any of its events runs a node runtime.
func WebpackEntries(p *Plugin) map[string]string {
	entries := map[string]string{}
	if p == nil || p.options == nil {
		return entries
	}
	for _, name := range p.options.FunctionNames() {
		fn := p.options.Functions[name]
		if fn == nil || !isNode(fn) {
			continue
		}
		addEntry(entries, fn.Handler)
		for _, ev := range fn.Events {
			addEntry(entries, ev.Common().Handler)
		}
	}
	return entries
}

func isNode(fn *options.Function) bool {
	for _, ev := range fn.Events {
		if strings.Contains(strings.ToLower(string(ev.Common().Runtime)), "node") {
			return true
		}
	}
	return false
}

func addEntry(entries map[string]string, handler string) {
	parts := strings.Split(handler, ".")
	if len(parts) < 2 {
		return
	}
	module := strings.Join(parts[:len(parts)-1], ".")
	entries[module] = "./" + module + ".js"
}
