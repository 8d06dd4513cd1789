package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/desertthunder/spotsession/internal/ui"
)

// Prompter asks the operator for the redirect URL until one carries both code and state.
//
// There is no retry limit and no timeout. Each attempt reads exactly one fresh line;
// text from a rejected attempt is not carried into the next one.
type Prompter struct {
	in      *bufio.Reader
	out     io.Writer
	palette *ui.Palette
}

// NewPrompter reads answers from in and writes prompts and diagnostics to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      bufio.NewReader(in),
		out:     out,
		palette: ui.NewPalette(out, ui.DefaultColors),
	}
}

// ReadCallback implements [CallbackSource].
//
// It returns only on a usable callback, a cancelled context (checked between attempts)
// or the end of input.
func (p *Prompter) ReadCallback(ctx context.Context) (Callback, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Callback{}, err
		}

		fmt.Fprintln(p.out, p.palette.Title("Enter the redirection URL:"))

		line, readErr := p.in.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return Callback{}, fmt.Errorf("failed to read redirection URL: %w", readErr)
		}

		cb, err := ExtractCallback(line)
		if err == nil {
			return cb, nil
		}

		if readErr != nil {
			return Callback{}, fmt.Errorf("input closed before a valid redirection URL was entered: %w", io.ErrUnexpectedEOF)
		}

		fmt.Fprintln(p.out, p.palette.Err(err.Error()))
	}
}
