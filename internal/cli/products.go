package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewProductsCommand creates the products command group.
func NewProductsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect and maintain the catalog",
	}
	cmd.AddCommand(newProductsListCommand(opts))
	cmd.AddCommand(newProductsPriceCommand(opts))
	cmd.AddCommand(newProductsActiveCommand(opts))
	cmd.AddCommand(newProductsStockCommand(opts))
	return cmd
}

func newProductsListCommand(opts *RootOptions) *cobra.Command {
	var f shop.ProductFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := opts.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			ps, err := shop.NewCatalog(store).ListProducts(cmd.Context(), f)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), ps, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK\tFEATURED")
				for _, p := range ps {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%t\n",
						p.ID, p.Name, p.CategoryName, p.Price.StringFixed(2), p.StockQuantity, p.IsFeatured)
				}
				_ = tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "category name")
	cmd.Flags().StringVar(&f.Search, "search", "", "substring of the product name")
	cmd.Flags().IntVar(&f.Skip, "skip", 0, "rows to skip")
	cmd.Flags().IntVar(&f.Limit, "limit", shop.DefaultPageLimit, "maximum rows")
	return cmd
}

func newProductsPriceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-price <product-id> <price>",
		Short: "Change a product's live price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[1], err)
			}
			store, closeStore, err := opts.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := shop.NewCatalog(store).SetPrice(cmd.Context(), id, price); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "product %d price %s\n", id, price.StringFixed(2))
			return err
		},
	}
}

func newProductsActiveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-active <product-id> <true|false>",
		Short: "Activate or deactivate a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			active, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid flag %q: %w", args[1], err)
			}
			store, closeStore, err := opts.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := shop.NewCatalog(store).SetActive(cmd.Context(), id, active); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "product %d active=%t\n", id, active)
			return err
		},
	}
}

func newProductsStockCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust-stock <product-id> <delta>",
		Short: "Add delta (may be negative) to a product's stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[1], err)
			}
			store, closeStore, err := opts.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			p, err := shop.NewCatalog(store).AdjustStock(cmd.Context(), id, delta)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "product %d stock %d\n", p.ID, p.StockQuantity)
			return err
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
