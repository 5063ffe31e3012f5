package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"streamvault/pkg/checkout"
)

func newPackagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List subscription packages and add-ons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, addOns, err := opts.client().Packages(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range pkgs {
				marker := ""
				if p.Popular {
					marker = " (popular)"
				}
				fmt.Fprintf(out, "%-8s %-14s %8s  %s%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Period, marker)
			}
			for _, a := range addOns {
				fmt.Fprintf(out, "+%-7s %-14s %8s\n", a.ID, a.Label, a.Price.StringFixed(2))
			}
			return nil
		},
	}
}

func newQuoteCmd(opts *options) *cobra.Command {
	var req checkout.QuoteRequest
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a package with add-ons and an optional coupon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.client().Quote(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		},
	}
	cmd.Flags().StringVar(&req.PackageID, "package", "", "package id")
	cmd.Flags().StringSliceVar(&req.AddOns, "addon", nil, "add-on id (repeatable)")
	cmd.Flags().StringVar(&req.CouponCode, "coupon", "", "coupon code")
	_ = cmd.MarkFlagRequired("package")
	return cmd
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the active payment provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.client().PublicConfig(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
}
