// Where: internal/ports/ui.go
// What: Output surface for command results.
// Why: Commands print summaries without depending on the console implementation.
package ports

import (
	"io"

	"github.com/hybridless/hybridless/internal/ui"
)

// KeyValue is a row rendered inside a block.
type KeyValue struct {
	Key   string
	Value any
}

// UserInterface exposes the output helpers used by commands.
type UserInterface interface {
	Info(msg string)
	Warn(msg string)
	Success(msg string)
	Block(emoji, title string, rows []KeyValue)
}

// NewConsoleUI returns a UserInterface backed by ui.Console.
func NewConsoleUI(out io.Writer, emoji bool) UserInterface {
	return consoleUI{console: ui.NewWithEmoji(out, emoji)}
}

type consoleUI struct {
	console *ui.Console
}

func (c consoleUI) Info(msg string)    { c.console.Info(msg) }
func (c consoleUI) Warn(msg string)    { c.console.Warn(msg) }
func (c consoleUI) Success(msg string) { c.console.Success(msg) }

func (c consoleUI) Block(emoji, title string, rows []KeyValue) {
	c.console.BlockStart(emoji, title)
	for _, kv := range rows {
		c.console.Item(kv.Key, kv.Value)
	}
	c.console.BlockEnd()
}
