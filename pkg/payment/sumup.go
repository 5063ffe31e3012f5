package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// SumUpGateway drives the SumUp checkout API. Requests are authorized with an
// OAuth2 client-credentials token fetched on first use and reused until it
// expires.
type SumUpGateway struct {
	BaseURL       string
	MerchantEmail string
	client        *http.Client
	logger        *slog.Logger
}

type SumUpCredentials struct {
	ClientID      string
	ClientSecret  string
	MerchantEmail string
	TokenURL      string
	// Tokens, when set, is shared with other gateways for the same client.
	Tokens oauth2.TokenSource
}

func sumupBaseURL(baseURL string) string {
	if baseURL == "" {
		return "https://api.sumup.com"
	}
	return strings.TrimRight(baseURL, "/")
}

// NewSumUpTokenSource returns a caching client-credentials token source. It
// refreshes only when the current token expires.
func NewSumUpTokenSource(baseURL string, creds SumUpCredentials, timeout time.Duration) oauth2.TokenSource {
	tokenURL := creds.TokenURL
	if tokenURL == "" {
		tokenURL = sumupBaseURL(baseURL) + "/token"
	}
	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"payments"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// outlives any one request, so it is not bound to a request context
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	return cc.TokenSource(ctx)
}

func NewSumUpGateway(baseURL string, creds SumUpCredentials, timeout time.Duration, logger *slog.Logger) (*SumUpGateway, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.MerchantEmail == "" {
		return nil, fmt.Errorf("%w: sumup client credentials or merchant email missing", ErrGatewayConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	tokens := creds.Tokens
	if tokens == nil {
		tokens = NewSumUpTokenSource(baseURL, creds, timeout)
	}
	client := oauth2.NewClient(context.Background(), tokens)
	client.Timeout = timeout
	return &SumUpGateway{
		BaseURL:       sumupBaseURL(baseURL),
		MerchantEmail: creds.MerchantEmail,
		client:        client,
		logger:        logger.With("gateway", ProviderSumUp),
	}, nil
}

func (g *SumUpGateway) Provider() ProviderName { return ProviderSumUp }

type sumupCheckoutReq struct {
	CheckoutReference string      `json:"checkout_reference"`
	Amount            json.Number `json:"amount"`
	Currency          string      `json:"currency"`
	PayToEmail        string      `json:"pay_to_email"`
	Description       string      `json:"description,omitempty"`
	ReturnURL         string      `json:"return_url,omitempty"`
}

type sumupCard struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

type sumupCompleteReq struct {
	PaymentType     string               `json:"payment_type"`
	Card            sumupCard            `json:"card"`
	PersonalDetails sumupPersonalDetails `json:"personal_details"`
}

type sumupPersonalDetails struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type sumupCheckout struct {
	ID                string `json:"id"`
	CheckoutReference string `json:"checkout_reference"`
	Status            string `json:"status"`
	NextStep          *struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Payload map[string]string `json:"payload"`
	} `json:"next_step"`
}

type sumupError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
	Param     string `json:"param"`
}

// CreateCharge creates a checkout resource and immediately completes it with
// the raw card. A next_step in the completion response is a 3DS challenge.
func (g *SumUpGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Card == nil {
		return nil, fmt.Errorf("%w: card details required", ErrInvalidRequest)
	}
	create := sumupCheckoutReq{
		CheckoutReference: req.Reference,
		Amount:            json.Number(req.Amount.StringFixed(2)),
		Currency:          strings.ToUpper(req.Currency),
		PayToEmail:        g.MerchantEmail,
		Description:       req.Description,
		ReturnURL:         req.ReturnURL,
	}
	var checkout sumupCheckout
	if err := g.do(ctx, http.MethodPost, "/v0.1/checkouts", create, &checkout); err != nil {
		return nil, err
	}
	g.logger.Info("checkout created", "reference", req.Reference, "checkout_id", checkout.ID)

	complete := sumupCompleteReq{
		PaymentType: "card",
		Card: sumupCard{
			Name:        req.Card.Name,
			Number:      req.Card.Number,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			CVV:         req.Card.CVV,
		},
		PersonalDetails: sumupPersonalDetails{Email: req.Customer.Email, Phone: req.Customer.Phone},
	}
	var completed sumupCheckout
	if err := g.do(ctx, http.MethodPut, "/v0.1/checkouts/"+url.PathEscape(checkout.ID), complete, &completed); err != nil {
		return nil, err
	}
	g.logger.Info("checkout completed", "reference", req.Reference, "checkout_id", checkout.ID,
		"status", completed.Status, "step_up", completed.NextStep != nil, "card_last4", req.Card.Last4())
	return g.result(checkout.ID, completed), nil
}

func (g *SumUpGateway) ChargeStatus(ctx context.Context, gatewayID string) (*ChargeResult, error) {
	var checkout sumupCheckout
	if err := g.do(ctx, http.MethodGet, "/v0.1/checkouts/"+url.PathEscape(gatewayID), nil, &checkout); err != nil {
		return nil, err
	}
	return g.result(gatewayID, checkout), nil
}

func (g *SumUpGateway) result(id string, c sumupCheckout) *ChargeResult {
	out := &ChargeResult{Provider: ProviderSumUp, GatewayID: id, Status: strings.ToUpper(c.Status)}
	if c.NextStep != nil && c.NextStep.URL != "" {
		method := c.NextStep.Method
		if method == "" {
			method = http.MethodPost
		}
		out.NextStep = &ThreeDSChallenge{URL: c.NextStep.URL, Method: method, Payload: c.NextStep.Payload}
	}
	return out
}

func (g *SumUpGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: sumup token exchange failed: %s", ErrGatewayConfig, re.ErrorCode)
		}
		return fmt.Errorf("sumup %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return g.mapError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (g *SumUpGateway) mapError(status int, body []byte) error {
	var se sumupError
	if err := json.Unmarshal(body, &se); err != nil {
		// validation failures come back as a list
		var list []sumupError
		if json.Unmarshal(body, &list) == nil && len(list) > 0 {
			se = list[0]
		}
	}
	g.logger.Warn("sumup api error", "status", status, "error_code", se.ErrorCode, "param", se.Param)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: sumup rejected credentials", ErrGatewayConfig)
	case status == http.StatusPaymentRequired || se.ErrorCode == "CARD_DECLINED":
		msg := se.Message
		if msg == "" {
			msg = "Your card was declined."
		}
		return &DeclinedError{Code: strings.ToLower(se.ErrorCode), Message: msg}
	case status == http.StatusBadRequest || status == http.StatusConflict:
		return fmt.Errorf("%w: %s %s", ErrInvalidRequest, se.ErrorCode, se.Param)
	}
	return fmt.Errorf("sumup api: %d %s", status, se.ErrorCode)
}
