package cli

import (
	"fmt"
	"io"

	"github.com/ariefcatur/go-storefront/internal/app"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/spf13/cobra"
)

// NewOrderCommand creates the order command group.
func NewOrderCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect and maintain orders",
	}
	cmd.AddCommand(newOrderShowCommand(opts))
	cmd.AddCommand(newOrderStatusCommand(opts))
	return cmd
}

func newOrderShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <order-id>",
		Short: "Print an order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, closeStore, err := opts.openStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			ord, err := shop.NewOrders(store, nil, "storectl", nil).GetOrder(cmd.Context(), id)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), ord, func(w io.Writer) {
				fmt.Fprintf(w, "order %d user %d status %s total %s\n",
					ord.ID, ord.UserID, ord.Status, ord.TotalAmount.StringFixed(2))
				fmt.Fprintf(w, "ship to: %s\n", ord.ShippingAddress)
				for _, it := range ord.Items {
					name := fmt.Sprintf("product %d", it.ProductID)
					if it.Product != nil {
						name = it.Product.Name
					}
					fmt.Fprintf(w, "  %d x %s @ %s = %s\n", it.Quantity, name, it.Price.StringFixed(2), it.Subtotal().StringFixed(2))
				}
			})
		},
	}
}

// The status command overwrites the status unconditionally. When configured,
// Kafka receives the status change event and Redis drops the cached status.
func newOrderStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Set an order's status (pending|confirmed|shipped|delivered|cancelled)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := shop.ParseStatus(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeStore, err := opts.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer closeStore()

			log := app.NewLogger(cmd.ErrOrStderr(), opts.cfg)
			cache, closeCache := app.OpenCache(ctx, opts.cfg, log)
			defer closeCache()
			pub, stopPub := app.OpenPublisher(ctx, opts.cfg, log)
			defer stopPub()

			ord, err := shop.NewOrders(store, pub, "storectl", log).UpdateStatus(ctx, id, st)
			if err != nil {
				return err
			}
			if err := cache.ForgetOrderStatus(ctx, id); err != nil {
				log.WarnContext(ctx, "forget cached status", "order_id", id, "error", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "order %d status %s\n", ord.ID, ord.Status)
			return err
		},
	}
}
