package payment

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_SumUpTokenReusedAcrossGateways(t *testing.T) {
	f := &fakeSumUp{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	factory := NewFactory(FactoryConfig{SumUpBaseURL: srv.URL, Timeout: time.Second}, nil, nil)
	creds := Credentials{
		Provider:           ProviderSumUp,
		SumUpClientID:      "cid",
		SumUpClientSecret:  "csecret",
		SumUpMerchantEmail: "merchant@example.com",
	}
	for i := 0; i < 5; i++ {
		g, err := factory.Gateway(context.Background(), creds)
		require.NoError(t, err)
		_, err = g.ChargeStatus(context.Background(), "chk_1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.tokenCalls)

	creds.SumUpClientSecret = "rotated"
	g, err := factory.Gateway(context.Background(), creds)
	require.NoError(t, err)
	_, err = g.ChargeStatus(context.Background(), "chk_1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.tokenCalls, "new credentials fetch a new token")
}

func TestFactory_SumUpMissingCredentials(t *testing.T) {
	factory := NewFactory(FactoryConfig{}, nil, nil)
	_, err := factory.Gateway(context.Background(), Credentials{Provider: ProviderSumUp, SumUpClientID: "cid"})
	assert.ErrorIs(t, err, ErrGatewayConfig)
}
