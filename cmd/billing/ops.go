package main

import (
	"fmt"

	"github.com/fekuna/omnipos-billing-service/internal/code"
	"github.com/fekuna/omnipos-billing-service/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(e.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrations.Apply(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				e.logger.Info("Database is up to date")
				return nil
			}
			e.logger.Info("Applied migrations", zap.Strings("names", applied))
			return nil
		},
	}
}

func reconcileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <product-id>...",
		Short: "Recompute on-hand stock from the movement ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), e.cfg, e.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				rec, err := a.inventory.Reconcile(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", id, err)
				}
				if err := printJSON(cmd, rec); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func expireCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-reservations",
		Short: "Release active reservations past their expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), e.cfg, e.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.reservations.ExpireStale(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "released %d reservations\n", n)
			return err
		},
	}
}

func nextCodeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "next-code <series>",
		Short:     "Allocate the next code of a series (customers, products, suppliers, invoices or a prefix)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"customers", "products", "suppliers", "invoices"},
		RunE: func(cmd *cobra.Command, args []string) error {
			series, ok := code.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown code series %q", args[0])
			}

			a, err := newApp(cmd.Context(), e.cfg, e.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			next, err := a.codes.NextCode(cmd.Context(), series)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
}
