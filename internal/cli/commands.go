package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

func (a *app) migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			migrator, err := a.runtime.Migrator(cmd.Context())
			if err != nil {
				return err
			}
			if err := migrator.Up(); err != nil {
				return err
			}
			return a.printVersion(cmd, migrator)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the last migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			migrator, err := a.runtime.Migrator(cmd.Context())
			if err != nil {
				return err
			}
			if err := migrator.Down(steps); err != nil {
				return err
			}
			return a.printVersion(cmd, migrator)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			migrator, err := a.runtime.Migrator(cmd.Context())
			if err != nil {
				return err
			}
			return a.printVersion(cmd, migrator)
		}),
	})

	return cmd
}

func (a *app) printVersion(cmd *cobra.Command, migrator Migrator) error {
	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{"version": version, "dirty": dirty})
}

func (a *app) ordersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and repair orders",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <order id or number>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			orders, err := a.runtime.Orders(cmd.Context())
			if err != nil {
				return err
			}
			ref := strings.TrimSpace(args[0])
			var order services.Order
			if looksLikeOrderNumber(ref) {
				order, err = orders.GetOrderByNumber(cmd.Context(), ref, "")
			} else {
				order, err = orders.GetOrder(cmd.Context(), ref, "")
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), orderView(order))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print order counts per status and non-cancelled revenue",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			orders, err := a.runtime.Orders(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := orders.GetOrderStats(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"totalOrders":      stats.TotalOrders,
				"pendingOrders":    stats.Pending,
				"processingOrders": stats.Processing,
				"shippedOrders":    stats.Shipped,
				"deliveredOrders":  stats.Delivered,
				"cancelledOrders":  stats.Cancelled,
				"totalRevenue":     stats.TotalRevenue,
				"currency":         stats.Currency,
			})
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <order id>",
		Short: "Cancel a pending or processing order and restore its stock",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			orders, err := a.runtime.Orders(cmd.Context())
			if err != nil {
				return err
			}
			order, err := orders.CancelOrder(cmd.Context(), services.CancelOrderCommand{
				OrderID: strings.TrimSpace(args[0]),
				ActorID: a.actor(),
			})
			if err != nil {
				return err
			}
			a.logger.Info("order cancelled", zap.String("order", order.ID), zap.String("actor", a.actor()))
			return writeJSON(cmd.OutOrStdout(), orderView(order))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <order id> <status>",
		Short: "Move an order through the status state machine",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(args[1])))
			if !status.Valid() {
				return fmt.Errorf("unknown order status %q", args[1])
			}
			orders, err := a.runtime.Orders(cmd.Context())
			if err != nil {
				return err
			}
			order, err := orders.UpdateOrderStatus(cmd.Context(), services.UpdateOrderStatusCommand{
				OrderID: strings.TrimSpace(args[0]),
				Status:  status,
				ActorID: a.actor(),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), orderView(order))
		}),
	})

	return cmd
}

func (a *app) idempotencyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idempotency",
		Short: "Maintain stored idempotency keys",
	}

	var batch int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired idempotency records once",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			if batch <= 0 {
				return fmt.Errorf("--batch must be positive, got %d", batch)
			}
			store, err := a.runtime.Idempotency(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := store.CleanupExpired(cmd.Context(), a.now().UTC(), batch)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"removed": removed})
		}),
	}
	cleanup.Flags().IntVar(&batch, "batch", 500, "maximum records removed")
	cmd.AddCommand(cleanup)

	return cmd
}

// looksLikeOrderNumber matches the PREFIX-YYYYMM-NNNNN shape of generated order numbers.
func looksLikeOrderNumber(ref string) bool {
	parts := strings.Split(ref, "-")
	if len(parts) != 3 || len(parts[1]) != 6 {
		return false
	}
	for _, part := range parts[1:] {
		if _, err := strconv.Atoi(part); err != nil {
			return false
		}
	}
	return true
}

func orderView(order services.Order) map[string]any {
	view := map[string]any{
		"id":            order.ID,
		"orderNumber":   order.OrderNumber,
		"userId":        order.CustomerID,
		"status":        order.Status,
		"paymentStatus": order.PaymentStatus,
		"items":         len(order.Items),
		"totalAmount":   order.Totals.Total,
		"currency":      order.Currency,
		"createdAt":     order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.TrackingNumber != "" {
		view["trackingNumber"] = order.TrackingNumber
	}
	if order.CancelledAt != nil {
		view["cancelledAt"] = order.CancelledAt.UTC().Format(time.RFC3339)
	}
	return view
}
