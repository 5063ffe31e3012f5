package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"streamvault/pkg/cardcapture"
	"streamvault/pkg/checkout"
	"streamvault/pkg/payment"
)

const cardContainer = "card-element"

type checkoutFlags struct {
	packageID     string
	addOns        []string
	coupon        string
	description   string
	customer      payment.Customer
	card          cardcapture.RawFields
	paymentMethod string
	stripeURL     string
	returnURL     string
	cooldownFile  string
}

func newCheckoutCmd(opts *options) *cobra.Command {
	var f checkoutFlags
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Pay for a package with the active provider",
		Long: `Pay for a package with the active payment provider.

Stripe checkouts tokenize through the hosted element (--payment-method selects
a test-mode method, pm_card_visa by default). SumUp checkouts take the raw card
fields. When a 3-D Secure challenge is shown, press Enter to abandon it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckout(cmd, opts, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.packageID, "package", "", "package id")
	fl.StringSliceVar(&f.addOns, "addon", nil, "add-on id (repeatable)")
	fl.StringVar(&f.coupon, "coupon", "", "coupon code")
	fl.StringVar(&f.description, "description", "", "charge description (defaults to the package name)")
	fl.StringVar(&f.customer.Name, "name", "", "cardholder full name")
	fl.StringVar(&f.customer.Email, "email", "", "customer email")
	fl.StringVar(&f.customer.Phone, "phone", "", "customer phone")
	fl.StringVar(&f.customer.Country, "country", "", "two-letter country code")
	fl.StringVar(&f.card.Number, "card", "", "card number (SumUp)")
	fl.StringVar(&f.card.Expiry, "expiry", "", "card expiry MM/YY (SumUp)")
	fl.StringVar(&f.card.CVV, "cvv", "", "card CVV (SumUp)")
	fl.StringVar(&f.paymentMethod, "payment-method", "pm_card_visa", "Stripe payment method id")
	fl.StringVar(&f.stripeURL, "stripe-url", "https://api.stripe.com", "Stripe API base URL for client-side confirmation")
	fl.StringVar(&f.returnURL, "return-url", "", "return URL for redirect-based confirmation")
	fl.StringVar(&f.cooldownFile, "cooldown-file", checkout.DefaultCooldownPath(), "where recent attempts are remembered")
	for _, name := range []string{"package", "name", "email", "phone", "country"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runCheckout(cmd *cobra.Command, opts *options, f checkoutFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	client := opts.client()
	log := opts.logger

	cfg, err := client.PublicConfig(ctx)
	if err != nil {
		return fmt.Errorf("load payment config: %w", err)
	}
	if !cfg.IsEnabled {
		return errors.New("payments are currently disabled")
	}

	quote, err := client.Quote(ctx, checkout.QuoteRequest{PackageID: f.packageID, AddOns: f.addOns, CouponCode: f.coupon})
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	coupon := f.coupon
	if quote.Rejection != "" {
		fmt.Fprintf(out, "Coupon not applied: %s\n", quote.Rejection)
		coupon = ""
	}
	description := f.description
	if description == "" {
		description = quote.Package.Name
	}

	f.card.Name = f.customer.Name
	method, err := capture(cmd, cfg, f)
	if err != nil {
		return err
	}

	poller := checkout.NewPoller(client, nil, log)
	poller.OnAttempt = func(attempt int, status string, err error) {
		log.Debug("status poll", "attempt", attempt, "status", status, "error", err)
	}

	var confirmer checkout.Confirmer
	if opts.sandbox {
		confirmer = &checkout.PollingConfirmer{Poller: poller}
	} else {
		sc := checkout.NewStripeConfirmer(f.stripeURL, cfg.PublicKey, poller, log)
		sc.ReturnURL = f.returnURL
		sc.OnRedirect = func(url string) {
			fmt.Fprintf(out, "Complete verification in your browser:\n  %s\n", url)
		}
		confirmer = sc
	}

	presenter := &checkout.WriterPresenter{Out: out, Cancel: enterPressed(cmd.InOrStdin())}
	orch := checkout.NewOrchestrator(
		checkout.Config{},
		client,
		checkout.NewFileCooldown(f.cooldownFile),
		nil,
		log,
		&checkout.StripeFlow{Confirmer: confirmer},
		&checkout.SumUpFlow{Presenter: presenter, Poller: poller},
	)

	res, attempt, err := orch.Run(ctx, checkout.Order{
		Provider:    cfg.Provider,
		Amount:      quote.Total,
		Description: description,
		Method:      method,
		Customer:    f.customer,
		CouponCode:  coupon,
		PackageID:   f.packageID,
		AddOns:      f.addOns,
	})
	if err != nil {
		var cd *checkout.CooldownError
		if errors.As(err, &cd) {
			return fmt.Errorf("please wait %s before trying again", cd.Remaining.Round(time.Second))
		}
		return err
	}
	log.Info("checkout done", "reference", attempt.Reference, "history", attempt.History())
	if err := printJSON(out, res); err != nil {
		return err
	}
	if res.State != checkout.StateSucceeded {
		return fmt.Errorf("payment failed: %s", res.Message)
	}
	return nil
}

func capture(cmd *cobra.Command, cfg *checkout.PublicConfig, f checkoutFlags) (*cardcapture.PaymentMethod, error) {
	switch cfg.Provider {
	case payment.ProviderStripe:
		hosted := cardcapture.NewHosted(
			&cardcapture.PresetElement{PaymentMethodID: f.paymentMethod},
			&cardcapture.StaticFrame{Containers: []string{cardContainer}},
			cardContainer,
			cfg.PublicKey,
		)
		if err := hosted.Init(cmd.Context()); err != nil {
			return nil, fmt.Errorf("card form: %w", err)
		}
		return hosted.Capture(cmd.Context())
	case payment.ProviderSumUp:
		return cardcapture.CaptureRaw(f.card, time.Now())
	}
	return nil, fmt.Errorf("unsupported payment provider %q", cfg.Provider)
}

// enterPressed closes the returned channel on the first line read from r.
func enterPressed(r io.Reader) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		if _, err := bufio.NewReader(r).ReadString('\n'); err == nil {
			close(ch)
		}
	}()
	return ch
}
