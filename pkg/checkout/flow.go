package checkout

import (
	"context"
	"errors"

	"streamvault/pkg/cardcapture"
	"streamvault/pkg/payment"
)

// Redirect targets the storefront navigates to once an attempt is terminal.
const (
	RedirectSuccess = "/success"
	RedirectFailed  = "/failed"
)

// Failure reasons carried on the failed redirect.
const (
	ReasonPaymentFailed = "payment_failed"
	Reason3DSTimeout    = "3ds_timeout"
	Reason3DSCancelled  = "3ds_cancelled"
	ReasonConfiguration = "configuration"
)

const genericFailure = "Payment could not be processed. Please try again."

// Result is the terminal outcome of an attempt.
type Result struct {
	Reference string `json:"reference"`
	State     State  `json:"state"`
	Redirect  string `json:"redirect"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Err       error  `json:"-"`
}

func succeeded(a *Attempt) *Result {
	return &Result{Reference: a.Reference, State: StateSucceeded, Redirect: RedirectSuccess}
}

func failed(a *Attempt, reason, message string, err error) *Result {
	if message == "" {
		message = genericFailure
	}
	return &Result{
		Reference: a.Reference,
		State:     StateFailed,
		Redirect:  RedirectFailed + "?reason=" + reason,
		Reason:    reason,
		Message:   message,
		Err:       err,
	}
}

// Flow is the provider-specific half of a checkout.
type Flow interface {
	Provider() payment.ProviderName
	// Prepare copies the captured payment method into the submission.
	Prepare(c cardcapture.Captured, req *SubmitRequest) error
	// Resolve drives the attempt from the submission answer to a terminal
	// state.
	Resolve(ctx context.Context, a *Attempt, resp *SubmitResponse) *Result
}

// Confirmer completes a Stripe-shaped intent that requires customer action.
// It returns the settled status, PAID or FAILED.
type Confirmer interface {
	Confirm(ctx context.Context, reference, clientSecret string) (string, error)
}

type StripeFlow struct {
	Confirmer Confirmer
}

func (f *StripeFlow) Provider() payment.ProviderName { return payment.ProviderStripe }

func (f *StripeFlow) Prepare(c cardcapture.Captured, req *SubmitRequest) error {
	if c.Kind != cardcapture.KindReference || c.Reference == "" {
		return invalid("card", "Please complete the card details")
	}
	req.PaymentMethodReference = c.Reference
	return nil
}

func (f *StripeFlow) Resolve(ctx context.Context, a *Attempt, resp *SubmitResponse) *Result {
	switch resp.Status {
	case payment.StripeSucceeded:
		_ = a.transition(StateSucceeded)
		return succeeded(a)
	case payment.StripeRequiresAction:
	default:
		_ = a.transition(StateFailed)
		return failed(a, ReasonPaymentFailed, "", nil)
	}

	_ = a.transition(StateRequiresAction)
	if resp.ClientSecret == "" || f.Confirmer == nil {
		_ = a.transition(StateFailed)
		return failed(a, ReasonConfiguration, "", errors.New("requires_action without client secret"))
	}
	_ = a.transition(StatePolling)
	status, err := f.Confirmer.Confirm(ctx, a.Reference, resp.ClientSecret)
	if err == nil && status == payment.StatusPaid {
		_ = a.transition(StateSucceeded)
		return succeeded(a)
	}
	_ = a.transition(StateFailed)
	return failureFor(a, err)
}

// ChallengePresenter shows a step-up challenge to the customer. dismiss
// must be called if the customer abandons it.
type ChallengePresenter interface {
	Present(ctx context.Context, reference string, ch payment.ThreeDSChallenge, dismiss func()) error
	Close(reference string)
}

type SumUpFlow struct {
	Presenter ChallengePresenter
	Poller    *Poller
}

func (f *SumUpFlow) Provider() payment.ProviderName { return payment.ProviderSumUp }

func (f *SumUpFlow) Prepare(c cardcapture.Captured, req *SubmitRequest) error {
	if c.Kind != cardcapture.KindRawCard || c.Card == nil {
		return invalid("card", "Please enter a valid card number")
	}
	card := *c.Card
	req.Card = &card
	return nil
}

func (f *SumUpFlow) Resolve(ctx context.Context, a *Attempt, resp *SubmitResponse) *Result {
	if resp.NextAction == nil {
		switch resp.Status {
		case payment.StatusPaid:
			_ = a.transition(StateSucceeded)
			return succeeded(a)
		case payment.StatusPending:
			// still processing without a challenge; wait for it to settle
			_ = a.transition(StatePolling)
			return f.poll(ctx, a)
		default:
			_ = a.transition(StateFailed)
			return failed(a, ReasonPaymentFailed, "", nil)
		}
	}

	_ = a.transition(StateRequiresAction)
	pollCtx, dismiss := context.WithCancel(ctx)
	defer dismiss()
	if f.Presenter != nil {
		if err := f.Presenter.Present(pollCtx, a.Reference, *resp.NextAction, dismiss); err != nil {
			_ = a.transition(StateFailed)
			return failed(a, ReasonPaymentFailed, "", err)
		}
		defer f.Presenter.Close(a.Reference)
	}

	_ = a.transition(StatePolling)
	return f.poll(pollCtx, a)
}

func (f *SumUpFlow) poll(ctx context.Context, a *Attempt) *Result {
	status, err := f.Poller.Poll(ctx, a.Reference)
	if err == nil && status == payment.StatusPaid {
		_ = a.transition(StateSucceeded)
		return succeeded(a)
	}
	_ = a.transition(StateFailed)
	return failureFor(a, err)
}

func failureFor(a *Attempt, err error) *Result {
	var declined *payment.DeclinedError
	switch {
	case err == nil:
		return failed(a, ReasonPaymentFailed, "", nil)
	case errors.Is(err, ErrTimeout):
		return failed(a, Reason3DSTimeout, "Payment confirmation timed out.", err)
	case errors.Is(err, ErrCancelled):
		return failed(a, Reason3DSCancelled, "Payment confirmation was cancelled.", err)
	case errors.As(err, &declined):
		return failed(a, ReasonPaymentFailed, declined.Message, err)
	case errors.Is(err, payment.ErrGatewayConfig):
		return failed(a, ReasonConfiguration, "", err)
	}
	return failed(a, ReasonPaymentFailed, "", err)
}
