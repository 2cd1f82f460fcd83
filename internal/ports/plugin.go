// Where: internal/ports/plugin.go
// What: Contract a plugin registers with the host.
// Why: Commands, hooks, and variable sources are declared as data so hosts can wire them.
package ports

import "context"

// Command is an entry point made of ordered lifecycle events.
type Command struct {
	Name      string
	Usage     string
	Lifecycle []string
}

// Hook runs when the host reaches a lifecycle event.
type Hook func(ctx context.Context) error

// Plugin is registered with a host.
type Plugin interface {
	Commands() []Command
	Hooks() map[string]Hook
	VariableSources() map[string]VariableSource
}
