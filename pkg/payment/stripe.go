package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeGateway creates PaymentIntents through the Stripe REST API using the
// account's secret key.
type StripeGateway struct {
	BaseURL   string
	SecretKey string
	client    *http.Client
	logger    *slog.Logger
}

func NewStripeGateway(baseURL, secretKey string, timeout time.Duration, logger *slog.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key missing", ErrGatewayConfig)
	}
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeGateway{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With("gateway", ProviderStripe),
	}, nil
}

func (g *StripeGateway) Provider() ProviderName { return ProviderStripe }

type stripeIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

type stripeError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

type stripeErrorEnvelope struct {
	Error stripeError `json:"error"`
}

// CreateCharge creates a manual-confirmation PaymentIntent and confirms it in
// the same call. The checkout reference doubles as the Stripe idempotency key.
func (g *StripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.PaymentMethodID == "" {
		return nil, fmt.Errorf("%w: payment method reference required", ErrInvalidRequest)
	}
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(minorUnits(req.Amount), 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("payment_method", req.PaymentMethodID)
	form.Set("confirmation_method", "manual")
	form.Set("confirm", "true")
	form.Add("payment_method_types[]", "card")
	if req.ReturnURL != "" {
		form.Set("return_url", req.ReturnURL)
	}
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	form.Set("metadata[checkout_reference]", req.Reference)
	form.Set("metadata[name]", req.Customer.Name)
	form.Set("metadata[email]", req.Customer.Email)
	form.Set("metadata[phone]", req.Customer.Phone)
	form.Set("metadata[country]", req.Customer.Country)

	var intent stripeIntent
	if err := g.do(ctx, http.MethodPost, "/v1/payment_intents", form, req.Reference, &intent); err != nil {
		return nil, err
	}
	g.logger.Info("payment intent created", "reference", req.Reference, "intent_id", intent.ID, "status", intent.Status)
	return &ChargeResult{
		Provider:     ProviderStripe,
		GatewayID:    intent.ID,
		Status:       intent.Status,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (g *StripeGateway) ChargeStatus(ctx context.Context, gatewayID string) (*ChargeResult, error) {
	var intent stripeIntent
	if err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(gatewayID), nil, "", &intent); err != nil {
		return nil, err
	}
	return &ChargeResult{Provider: ProviderStripe, GatewayID: intent.ID, Status: intent.Status}, nil
}

func (g *StripeGateway) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return g.mapError(resp.StatusCode, respBody)
	}
	return json.Unmarshal(respBody, out)
}

// mapError turns a Stripe error envelope into the package error taxonomy.
func (g *StripeGateway) mapError(status int, body []byte) error {
	var env stripeErrorEnvelope
	_ = json.Unmarshal(body, &env)
	g.logger.Warn("stripe api error", "status", status, "type", env.Error.Type, "code", env.Error.Code)
	switch env.Error.Type {
	case "card_error":
		code := env.Error.Code
		if code == "" {
			code = env.Error.DeclineCode
		}
		return &DeclinedError{
			Code:           code,
			Message:        env.Error.Message,
			RequiresAction: code == "authentication_required",
		}
	case "invalid_request_error":
		return fmt.Errorf("%w: %s", ErrInvalidRequest, env.Error.Code)
	case "authentication_error":
		return fmt.Errorf("%w: stripe rejected the secret key", ErrGatewayConfig)
	}
	return fmt.Errorf("stripe api: %d %s", status, env.Error.Type)
}
