// Package cli implements lifelinectl, the operator tool for inspecting and seeding players.
package cli

import (
	"context"
	"fmt"
	"io"

	"lifeline/internal/bootstrap"
	"lifeline/pkg/clock"
	"lifeline/pkg/config"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener connects the services a command runs against.
type Opener func(ctx context.Context, opts *RootOptions) (*bootstrap.Services, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"

	open Opener
}

// NewRootCommand creates the root command wired to the configured store.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openFromConfig)
}

func newRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "lifelinectl",
		Short: "Inspect and seed lifeline players",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (env vars override)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewPlayerCommand(opts))
	cmd.AddCommand(NewRankingCommand(opts))

	return cmd
}

func openFromConfig(ctx context.Context, opts *RootOptions) (*bootstrap.Services, error) {
	bootstrap.LoadEnv()
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	l, err := bootstrap.Logger(cfg, "lifelinectl")
	if err != nil {
		return nil, err
	}
	st, err := bootstrap.OpenStore(ctx, cfg, clock.System{})
	if err != nil {
		return nil, err
	}
	return bootstrap.NewServices(cfg, st, clock.System{}, l), nil
}

// withServices opens the services for one command run and releases them afterwards.
func (o *RootOptions) withServices(ctx context.Context, fn func(*bootstrap.Services) error) error {
	svc, err := o.open(ctx, o)
	if err != nil {
		return err
	}
	defer svc.Close(context.WithoutCancel(ctx))
	return fn(svc)
}

// emit writes v as indented JSON, or calls text for the text format.
func (o *RootOptions) emit(w io.Writer, v interface{}, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
