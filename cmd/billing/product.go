package main

import (
	"fmt"

	"github.com/fekuna/omnipos-billing-service/internal/product/dto"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func productCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage catalogue products and their stock",
	}
	cmd.AddCommand(
		productCreateCmd(e),
		productPurchaseCmd(e),
		productShowCmd(e),
		productListCmd(e),
	)
	return cmd
}

func parseDecimal(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, value, err)
	}
	return &d, nil
}

func productCreateCmd(e *env) *cobra.Command {
	var (
		input                dto.CreateProductInput
		price, tax, unitCost string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a product with the next UID code and optional opening stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Name = args[0]

			p, err := parseDecimal("price", price)
			if err != nil {
				return err
			}
			if p != nil {
				input.Price = *p
			}
			if input.TaxPercent, err = parseDecimal("tax", tax); err != nil {
				return err
			}
			if input.UnitCost, err = parseDecimal("unit-cost", unitCost); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), e.cfg, e.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.products.CreateProduct(cmd.Context(), &input)
			if created != nil {
				if perr := printJSON(cmd, created); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&input.SKU, "sku", "", "Stock keeping unit")
	cmd.Flags().StringVar(&input.Description, "description", "", "Description")
	cmd.Flags().StringVar(&price, "price", "0", "Unit price")
	cmd.Flags().StringVar(&tax, "tax", "", "GST percent")
	cmd.Flags().IntVar(&input.OpeningStock, "opening-stock", 0, "Opening on-hand quantity")
	cmd.Flags().StringVar(&unitCost, "unit-cost", "", "Unit cost of the opening stock")
	cmd.Flags().StringVar(&input.CreatedBy, "by", "", "Acting user id")
	return cmd
}

func productPurchaseCmd(e *env) *cobra.Command {
	var (
		input    dto.RecordPurchaseInput
		unitCost string
	)

	cmd := &cobra.Command{
		Use:   "purchase <product-id> <qty>",
		Short: "Record received stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.ProductID = args[0]
			if _, err := fmt.Sscan(args[1], &input.Qty); err != nil {
				return fmt.Errorf("invalid qty %q: %w", args[1], err)
			}
			var err error
			if input.UnitCost, err = parseDecimal("unit-cost", unitCost); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), e.cfg, e.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			mv, err := a.products.RecordPurchase(cmd.Context(), &input)
			if mv != nil {
				if perr := printJSON(cmd, mv); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&unitCost, "unit-cost", "", "Unit cost")
	cmd.Flags().StringVar(&input.SupplierID, "supplier", "", "Supplier id")
	cmd.Flags().StringVar(&input.CreatedBy, "by", "", "Acting user id")
	return cmd
}

func productShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <product-id>",
		Short: "Show a product with its live availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), e.cfg, e.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.products.GetProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			avail, err := a.inventory.GetAvailability(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"product": p, "availability": avail})
		},
	}
}

func productListCmd(e *env) *cobra.Command {
	filters := dto.ProductFilters{Page: 1, PageSize: 20}
	var maxStock int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("max-stock") {
				filters.MaxStock = &maxStock
			}

			a, err := newApp(cmd.Context(), e.cfg, e.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			items, total, err := a.products.ListProducts(cmd.Context(), &filters)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"items": items, "total": total})
		},
	}
	cmd.Flags().StringVarP(&filters.SearchQuery, "query", "q", "", "Search name, sku or code")
	cmd.Flags().IntVar(&maxStock, "max-stock", 0, "Only products with on-hand at or below this")
	cmd.Flags().StringVar(&filters.SortBy, "sort", "", "name, price, stock or created_at")
	cmd.Flags().StringVar(&filters.SortOrder, "order", "", "asc or desc")
	cmd.Flags().IntVar(&filters.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&filters.PageSize, "page-size", 20, "Page size")
	return cmd
}
