// Package cli implements storectl, the storefront admin command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/ariefcatur/go-storefront/internal/app"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	Driver     string
	SQLitePath string
	DSN        string

	cfg config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for storectl. Flags override the
// environment configuration.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storectl",
		Short: "Storefront admin tool",
		Long:  "Administrative commands for the storefront: schema migration, demo data, catalog and order maintenance.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.cfg = config.Load()
			if opts.Driver != "" {
				opts.cfg.StoreDriver = opts.Driver
			}
			if opts.SQLitePath != "" {
				opts.cfg.SQLitePath = opts.SQLitePath
			}
			if opts.DSN != "" {
				opts.cfg.PostgresDSN = opts.DSN
			}
			return opts.cfg.Validate()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver (postgres|sqlite), default STORE_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "sqlite-path", "", "sqlite database file, default SQLITE_PATH")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "postgres dsn, default POSTGRES_DSN")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))

	return cmd
}

func (o *RootOptions) openStore(ctx context.Context, migrate bool) (shop.Store, func(), error) {
	return app.OpenStore(ctx, o.cfg, migrate)
}

// print writes v as indented JSON, or calls text for the text format.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
