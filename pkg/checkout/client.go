package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"streamvault/pkg/payment"
	"streamvault/pkg/pricing"
)

// SubmitRequest is the body of POST /checkout/create.
type SubmitRequest struct {
	Amount                 decimal.Decimal  `json:"amount"`
	Currency               string           `json:"currency"`
	CheckoutReference      string           `json:"checkoutReference" binding:"required,max=64"`
	Description            string           `json:"description"`
	PaymentMethodReference string           `json:"paymentMethodReference,omitempty"`
	Card                   *payment.Card    `json:"card,omitempty"`
	ClientIdentity         payment.Customer `json:"clientIdentity"`
	CouponCode             string           `json:"couponCode,omitempty"`
	PackageID              string           `json:"packageId,omitempty"`
	AddOns                 []string         `json:"addOns,omitempty"`
}

type SubmitResponse struct {
	Status       string                    `json:"status"`
	ClientSecret string                    `json:"clientSecret,omitempty"`
	NextAction   *payment.ThreeDSChallenge `json:"nextAction,omitempty"`
}

type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
}

type PublicConfig struct {
	Provider  payment.ProviderName `json:"provider"`
	IsEnabled bool                 `json:"isEnabled"`
	PublicKey string               `json:"publicKey"`
}

type CouponDiscount struct {
	DiscountType  pricing.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal      `json:"discountValue"`
	ValidUntil    time.Time            `json:"validUntil"`
}

type IssuedCoupon struct {
	CouponCode string          `json:"couponCode"`
	Discount   decimal.Decimal `json:"discount"`
	ValidUntil time.Time       `json:"validUntil"`
}

type QuoteRequest struct {
	PackageID  string   `json:"packageId"`
	AddOns     []string `json:"addOns,omitempty"`
	CouponCode string   `json:"couponCode,omitempty"`
}

// Client talks to the storefront API under /api/v1.
type Client struct {
	BaseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/create", req, &out); err != nil {
		return nil, submitError(err)
	}
	return &out, nil
}

// submitError maps API error codes back onto the payment error taxonomy.
func submitError(err error) error {
	apiErr, ok := err.(*APIError)
	if !ok {
		return err
	}
	switch apiErr.Code {
	case "card_declined":
		return &payment.DeclinedError{Code: apiErr.Code, Message: apiErr.Message, RequiresAction: apiErr.RequiresAction}
	case "gateway_config":
		return fmt.Errorf("%w: %s", payment.ErrGatewayConfig, apiErr.Message)
	case "gateway_unavailable":
		return fmt.Errorf("%w: %s", payment.ErrUnavailable, apiErr.Message)
	}
	return apiErr
}

func (c *Client) FetchStatus(ctx context.Context, reference string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/checkout/status/"+url.PathEscape(reference), nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) PublicConfig(ctx context.Context) (*PublicConfig, error) {
	var out PublicConfig
	if err := c.do(ctx, http.MethodGet, "/payment/config/public", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidateCoupon(ctx context.Context, code string) (*CouponDiscount, error) {
	var out CouponDiscount
	if err := c.do(ctx, http.MethodPost, "/coupons/validate", map[string]string{"code": code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) IssueCoupon(ctx context.Context, email, phone string) (*IssuedCoupon, error) {
	var out IssuedCoupon
	body := map[string]string{"email": email, "phone": phone}
	if err := c.do(ctx, http.MethodPost, "/coupons/issue", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error) {
	var out pricing.Quote
	if err := c.do(ctx, http.MethodPost, "/quote", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Packages(ctx context.Context) ([]pricing.Package, []pricing.AddOn, error) {
	var out struct {
		Packages []pricing.Package `json:"packages"`
		AddOns   []pricing.AddOn   `json:"addOns"`
	}
	if err := c.do(ctx, http.MethodGet, "/packages", nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Packages, out.AddOns, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env struct {
			Error          string `json:"error"`
			Code           string `json:"code"`
			RequiresAction bool   `json:"requiresAction"`
		}
		if json.Unmarshal(data, &env) == nil {
			apiErr.Code, apiErr.Message, apiErr.RequiresAction = env.Code, env.Error, env.RequiresAction
		}
		return apiErr
	}
	return json.Unmarshal(data, out)
}
