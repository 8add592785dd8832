package cli

import (
	"fmt"
	"io"

	"github.com/ariefcatur/go-storefront/internal/seed"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog into an empty store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := opts.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := seed.Run(cmd.Context(), shop.NewCatalog(store))
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				if res.Skipped {
					fmt.Fprintln(w, "catalog already seeded, nothing to do")
					return
				}
				fmt.Fprintf(w, "seeded %d categories, %d products\n", res.Categories, res.Products)
			})
		},
	}
}
