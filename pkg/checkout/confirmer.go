package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamvault/pkg/payment"
)

// StripeConfirmer confirms a PaymentIntent from the client side with the
// publishable key. A redirect-based step-up is handed to OnRedirect and then
// resolved by polling the storefront status endpoint.
type StripeConfirmer struct {
	BaseURL        string
	PublishableKey string
	ReturnURL      string
	OnRedirect     func(url string)
	Poller         *Poller
	client         *http.Client
	logger         *slog.Logger
}

func NewStripeConfirmer(baseURL, publishableKey string, poller *Poller, logger *slog.Logger) *StripeConfirmer {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeConfirmer{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		PublishableKey: publishableKey,
		Poller:         poller,
		client:         &http.Client{Timeout: 10 * time.Second},
		logger:         logger,
	}
}

type confirmIntent struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	NextAction *struct {
		Type          string `json:"type"`
		RedirectToURL *struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// intentID extracts "pi_x" from a "pi_x_secret_y" client secret.
func intentID(clientSecret string) string {
	if i := strings.Index(clientSecret, "_secret_"); i > 0 {
		return clientSecret[:i]
	}
	return ""
}

func (c *StripeConfirmer) Confirm(ctx context.Context, reference, clientSecret string) (string, error) {
	if c.PublishableKey == "" {
		return "", fmt.Errorf("%w: publishable key missing", payment.ErrGatewayConfig)
	}
	id := intentID(clientSecret)
	if id == "" {
		return "", fmt.Errorf("%w: malformed client secret", payment.ErrInvalidRequest)
	}
	form := url.Values{}
	form.Set("client_secret", clientSecret)
	if c.ReturnURL != "" {
		form.Set("return_url", c.ReturnURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/payment_intents/"+url.PathEscape(id)+"/confirm", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.PublishableKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("confirm intent: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var env struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &env)
		if env.Error.Type == "card_error" {
			return "", &payment.DeclinedError{Code: env.Error.Code, Message: env.Error.Message}
		}
		return "", fmt.Errorf("confirm intent: %d %s", resp.StatusCode, env.Error.Code)
	}
	var intent confirmIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return "", err
	}
	c.logger.Info("intent confirmed", "reference", reference, "status", intent.Status)

	switch intent.Status {
	case payment.StripeSucceeded:
		return payment.StatusPaid, nil
	case payment.StripeRequiresAction:
		if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil && c.OnRedirect != nil {
			c.OnRedirect(intent.NextAction.RedirectToURL.URL)
		}
		return c.Poller.Poll(ctx, reference)
	case payment.StripeProcessing:
		return c.Poller.Poll(ctx, reference)
	}
	if e := intent.LastPaymentError; e != nil {
		return "", &payment.DeclinedError{Code: e.Code, Message: e.Message}
	}
	return payment.StatusFailed, nil
}

// PollingConfirmer settles a pending intent by polling alone. It serves
// sandbox gateways, which complete step-up on their own.
type PollingConfirmer struct {
	Poller *Poller
}

func (c *PollingConfirmer) Confirm(ctx context.Context, reference, _ string) (string, error) {
	return c.Poller.Poll(ctx, reference)
}
