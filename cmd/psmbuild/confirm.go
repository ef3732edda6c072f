// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/psmbuild/psmbuild/internal/manifest"
)

// alwaysConfirm answers every question with yes. It backs --yes.
var alwaysConfirm = manifest.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// newConfirmer picks how descriptor updates with uncommitted changes are
// approved: --yes approves them, an interactive terminal asks, and anything
// else declines.
func newConfirmer(assumeYes bool, in *os.File, out io.Writer) manifest.Confirmer {
	switch {
	case assumeYes:
		return alwaysConfirm
	case in == nil || !term.IsTerminal(int(in.Fd())):
		return manifest.Abort{}
	default:
		return &promptConfirmer{in: in, out: out}
	}
}

// promptConfirmer asks on the terminal with a huh confirm field.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

// Confirm implements manifest.Confirmer. An aborted prompt declines.
func (p *promptConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Update").
			Negative("Skip").
			Value(&ok),
	)).
		WithTheme(huh.ThemeCharm()).
		WithAccessible(os.Getenv("ACCESSIBLE") != "").
		WithInput(p.in).
		WithOutput(p.out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
