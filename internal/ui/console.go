// Where: internal/ui/console.go
// What: Console output for command summaries.
// Why: Stage logs go through the logger; results the operator acts on are printed here.
package ui

import (
	"fmt"
	"io"
	"strings"
)

// Console writes formatted lines to Out. Emoji prefixes fall back to
// bracketed tags when disabled, e.g. when stdout is not a terminal.
type Console struct {
	Out          io.Writer
	EmojiEnabled bool
}

// NewWithEmoji creates a console with explicit emoji settings.
func NewWithEmoji(out io.Writer, enabled bool) *Console {
	return &Console{Out: out, EmojiEnabled: enabled}
}

// Header prints a section title.
// Example: 📦 Images
func (c *Console) Header(emoji, title string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.prefix(emoji, ""), title)
}

// BlockStart opens a block separated from preceding output by a blank line.
func (c *Console) BlockStart(emoji, title string) {
	fmt.Fprintln(c.Out)
	c.Header(emoji, title)
}

// BlockEnd closes a block.
func (c *Console) BlockEnd() {
	fmt.Fprintln(c.Out)
}

// Item prints an indented key/value row.
func (c *Console) Item(key string, value any) {
	fmt.Fprintf(c.Out, "   %-24s %v\n", key+":", value)
}

func (c *Console) Success(msg string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.prefix("✅", "[ok]"), msg)
}

func (c *Console) Info(msg string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.prefix("➜", ""), msg)
}

func (c *Console) Warn(msg string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.prefix("⚠️", "[warn]"), msg)
}

func (c *Console) prefix(emoji, fallback string) string {
	if c.EmojiEnabled && strings.TrimSpace(emoji) != "" {
		return emoji + " "
	}
	if fallback == "" {
		return ""
	}
	return fallback + " "
}
