package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotsession/internal/shared"
	"github.com/urfave/cli/v3"
)

// TokenPath prints where the refresh token is stored.
func (r *Runner) TokenPath(ctx context.Context, cmd *cli.Command) error {
	_, err := fmt.Fprintln(r.stdout, r.tokenFile().Path)
	return err
}

// TokenShow prints the stored refresh token with everything but its ends masked.
func (r *Runner) TokenShow(ctx context.Context, cmd *cli.Command) error {
	secret, err := r.tokenFile().Load()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.stdout, shared.MaskSecret(secret))
	return err
}

// TokenClear deletes the token file so the next run starts a new session.
func (r *Runner) TokenClear(ctx context.Context, cmd *cli.Command) error {
	f := r.tokenFile()
	if !f.Exists() {
		fmt.Fprintln(r.stderr, r.palette.Warn("No token file at "+f.Path))
		return nil
	}
	if err := f.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(r.stderr, r.palette.OK("Removed "+f.Path))
	return nil
}
