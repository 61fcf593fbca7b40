package airtel_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"airtel-gateway/internal/airtel"
	"airtel-gateway/internal/config"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://airtel.test"

func newClient() *airtel.Client {
	return airtel.NewClient(
		config.Provider{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TestMode:     true,
			SandboxURL:   baseURL,
		},
		config.Merchant{Country: "CG", Currency: "XAF"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestClient_FetchToken(t *testing.T) {
	tests := []struct {
		name          string
		mockResponse  func()
		expectedToken string
		expectedError bool
		errContains   string
	}{
		{
			name: "Success",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/auth/oauth2/token").
					JSON(map[string]string{
						"client_id":     "client-id",
						"client_secret": "client-secret",
						"grant_type":    "client_credentials",
					}).
					Reply(200).
					JSON(map[string]any{"access_token": "tok-123", "expires_in": 180})
			},
			expectedToken: "tok-123",
		},
		{
			name: "InvalidCredentials",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/auth/oauth2/token").
					Reply(401).
					JSON(map[string]string{"error": "invalid_client"})
			},
			expectedError: true,
			errContains:   "invalid_client",
		},
		{
			name: "MissingAccessToken",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/auth/oauth2/token").
					Reply(200).
					JSON(map[string]string{"token_type": "bearer"})
			},
			expectedError: true,
			errContains:   "missing access_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			token, err := newClient().FetchToken(context.Background())

			if tt.expectedError {
				require.Error(t, err)
				var authErr *airtel.AuthError
				assert.True(t, errors.As(err, &authErr))
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedToken, token.AccessToken)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestClient_InitiatePayment(t *testing.T) {
	req := airtel.PaymentRequest{
		Reference: "Order 42",
		Subscriber: airtel.Subscriber{
			Country:  "CG",
			Currency: "XAF",
			Msisdn:   "0411111111",
		},
		Transaction: airtel.PaymentTransaction{
			Amount:   1000,
			Country:  "CG",
			Currency: "XAF",
			ID:       "7a2b8f3e-0000-4000-8000-000000000001",
		},
	}

	t.Run("Accepted", func(t *testing.T) {
		defer gock.Off()
		gock.New(baseURL).
			Post("/merchant/v1/payments/").
			MatchHeader("Authorization", "Bearer tok-123").
			MatchHeader("X-Country", "CG").
			MatchHeader("X-Currency", "XAF").
			Reply(200).
			JSON(map[string]any{"status": map[string]any{"success": true, "message": "SUCCESS"}})

		resp, err := newClient().InitiatePayment(context.Background(), req, "tok-123")
		require.NoError(t, err)
		assert.True(t, resp.Status.Success)
		assert.True(t, gock.IsDone())
	})

	t.Run("Rejected", func(t *testing.T) {
		defer gock.Off()
		gock.New(baseURL).
			Post("/merchant/v1/payments/").
			Reply(200).
			JSON(map[string]any{"status": map[string]any{"success": false, "message": "Insufficient balance"}})

		resp, err := newClient().InitiatePayment(context.Background(), req, "tok-123")
		require.NoError(t, err)
		assert.False(t, resp.Status.Success)
		assert.Equal(t, "Insufficient balance", resp.Status.Message)
	})

	t.Run("ServerErrorRetainsBody", func(t *testing.T) {
		defer gock.Off()
		gock.New(baseURL).
			Post("/merchant/v1/payments/").
			Reply(500).
			BodyString(`{"error":"boom"}`)

		_, err := newClient().InitiatePayment(context.Background(), req, "tok-123")
		require.Error(t, err)

		var apiErr *airtel.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 500, apiErr.StatusCode)
		assert.Contains(t, apiErr.Body, "boom")
	})

	t.Run("MalformedBodyRetained", func(t *testing.T) {
		defer gock.Off()
		gock.New(baseURL).
			Post("/merchant/v1/payments/").
			Reply(200).
			BodyString("not json at all")

		_, err := newClient().InitiatePayment(context.Background(), req, "tok-123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not json at all")
	})
}

func TestClient_QueryStatus(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).
		Get("/standard/v1/payments/7a2b8f3e-0000-4000-8000-000000000001").
		MatchHeader("Authorization", "Bearer tok-123").
		MatchHeader("X-Country", "CG").
		MatchHeader("X-Currency", "XAF").
		Reply(200).
		JSON(map[string]any{
			"status": map[string]any{"success": true},
			"data": map[string]any{
				"transaction": map[string]any{
					"status":          "TS",
					"message":         "Paid",
					"airtel_money_id": "AM-677",
				},
			},
		})

	resp, err := newClient().QueryStatus(context.Background(), "7a2b8f3e-0000-4000-8000-000000000001", "tok-123")
	require.NoError(t, err)
	assert.True(t, resp.Status.Success)
	assert.Equal(t, "TS", resp.Data.Transaction.Status)
	assert.Equal(t, "AM-677", resp.Data.Transaction.AirtelMoneyID)
	assert.True(t, gock.IsDone())
}
