// Where: internal/interaction/interaction.go
// What: Confirmation and selection prompts with TTY detection.
// Why: Destructive commands ask before deleting repositories unless --yes is passed.
package interaction

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrConfirmationRequired is returned when a prompt is needed but stdin is
// not a terminal.
var ErrConfirmationRequired = errors.New("confirmation required: rerun with --yes")

// Prompter asks the operator for input.
type Prompter interface {
	Confirm(title, description string) (bool, error)
	Select(title string, options []string) (string, error)
}

// IsTerminal reports whether the file refers to a terminal device.
var IsTerminal = func(file *os.File) bool {
	if file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Confirm returns true without prompting when assumeYes is set. Without a
// terminal on in it refuses with ErrConfirmationRequired.
func Confirm(p Prompter, in *os.File, assumeYes bool, title, description string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if p == nil || !IsTerminal(in) {
		return false, ErrConfirmationRequired
	}
	return p.Confirm(title, description)
}

// HuhPrompter implements Prompter with huh forms.
type HuhPrompter struct{}

func (HuhPrompter) Confirm(title, description string) (bool, error) {
	var confirmed bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()
	if err != nil {
		return false, err
	}
	return confirmed, nil
}

func (HuhPrompter) Select(title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt, opt)
	}
	var selected string
	err := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions...).
		Value(&selected).
		Run()
	if err != nil {
		return "", err
	}
	return selected, nil
}
