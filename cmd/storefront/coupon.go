package main

import (
	"github.com/spf13/cobra"
)

func newCouponCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coupon",
		Short: "Validate or claim discount coupons",
	}

	validate := &cobra.Command{
		Use:   "validate <code>",
		Short: "Check a coupon and print its discount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.client().ValidateCoupon(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}

	var email, phone string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Claim the welcome coupon for an email address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client().IssueCoupon(cmd.Context(), email, phone)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}
	issue.Flags().StringVar(&email, "email", "", "claimant email")
	issue.Flags().StringVar(&phone, "phone", "", "claimant phone")
	_ = issue.MarkFlagRequired("email")
	_ = issue.MarkFlagRequired("phone")

	cmd.AddCommand(validate, issue)
	return cmd
}
