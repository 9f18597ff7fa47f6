package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

var testCreds = Credentials{
	GoID:         "8123456789",
	ClientID:     "client-id",
	ClientSecret: "client-secret",
}

// tokenThen answers the OAuth call and hands every other request to next.
func tokenThen(t *testing.T, next func(req *http.Request) *http.Response) MockRoundTripper {
	return func(req *http.Request) *http.Response {
		if strings.HasSuffix(req.URL.Path, "/oauth2/token") {
			return jsonResponse(http.StatusOK, `{"token_type":"bearer","access_token":"tok-123","expires_in":1800}`)
		}
		assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
		return next(req)
	}
}

func TestGoPayGateway_Authorize(t *testing.T) {
	gw := NewGoPayGateway().(*gopayGateway)

	t.Run("Success_Sandbox", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, SandboxURL+"/oauth2/token", req.URL.String())

			user, pass, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)

			body, _ := io.ReadAll(req.Body)
			assert.Contains(t, string(body), "grant_type=client_credentials")
			assert.Contains(t, string(body), "scope=payment-create")

			return jsonResponse(http.StatusOK, `{"access_token":"tok-123"}`)
		})

		client, err := gw.Authorize(context.Background(), testCreds, "en")
		require.NoError(t, err)
		c := client.(*gopayClient)
		assert.Equal(t, "tok-123", c.accessToken)
		assert.Equal(t, SandboxURL, c.baseURL)
		assert.Equal(t, "en", c.lang)
	})

	t.Run("Success_Production", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, ProductionURL+"/oauth2/token", req.URL.String())
			return jsonResponse(http.StatusOK, `{"access_token":"tok-123"}`)
		})

		creds := testCreds
		creds.ProductionMode = true
		client, err := gw.Authorize(context.Background(), creds, "cs")
		require.NoError(t, err)
		assert.Equal(t, ProductionURL, client.(*gopayClient).baseURL)
	})

	t.Run("BadCredentials", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusUnauthorized, `{"errors":[{"error_code":202,"error_name":"AUTH_WRONG_CREDENTIALS"}]}`)
		})

		_, err := gw.Authorize(context.Background(), testCreds, "cs")
		var authErr *AuthError
		assert.ErrorAs(t, err, &authErr)
		assert.Contains(t, err.Error(), "AUTH_WRONG_CREDENTIALS")
	})

	t.Run("MissingSecret", func(t *testing.T) {
		_, err := gw.Authorize(context.Background(), Credentials{GoID: "1"}, "cs")
		var authErr *AuthError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("NetworkError", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := gw.Authorize(context.Background(), testCreds, "cs")
		var authErr *AuthError
		assert.ErrorAs(t, err, &authErr)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestGoPayClient_Create(t *testing.T) {
	gw := NewGoPayGateway().(*gopayGateway)

	payload := &CreatePayload{
		Target:      Target{Type: "ACCOUNT", GoID: testCreds.GoID},
		Currency:    "CZK",
		Amount:      12050,
		OrderNumber: "000123",
		Lang:        "cs",
		Items: []OrderItem{
			{Type: "ITEM", Name: "Mug", Count: 2, Amount: 12050},
		},
		Callback: Callback{
			ReturnURL:       "https://shop.example/return",
			NotificationURL: "https://shop.example/payments/notify?token=abc",
		},
	}

	t.Run("Success", func(t *testing.T) {
		gw.httpClient.Transport = tokenThen(t, func(req *http.Request) *http.Response {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, SandboxURL+"/payments/payment", req.URL.String())
			assert.Equal(t, "cs", req.Header.Get("Accept-Language"))

			var sent map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
			assert.Equal(t, "000123", sent["order_number"])
			assert.Equal(t, float64(12050), sent["amount"])
			target := sent["target"].(map[string]any)
			assert.Equal(t, "ACCOUNT", target["type"])
			callback := sent["callback"].(map[string]any)
			assert.Equal(t, "https://shop.example/return", callback["return_url"])

			return jsonResponse(http.StatusOK, `{
				"id": 3000006529,
				"order_number": "000123",
				"state": "CREATED",
				"amount": 12050,
				"currency": "CZK",
				"gw_url": "https://gw.sandbox.gopay.com/gw/v3/abc"
			}`)
		})

		client, err := gw.Authorize(context.Background(), testCreds, "cs")
		require.NoError(t, err)

		resp, err := client.Create(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, int64(3000006529), resp.JSON.ID)
		assert.Equal(t, "CREATED", resp.JSON.State)
		assert.Equal(t, "https://gw.sandbox.gopay.com/gw/v3/abc", resp.JSON.GwURL)
		assert.Empty(t, resp.JSON.Errors)
	})

	t.Run("ValidationErrorBody", func(t *testing.T) {
		raw := `{"date_issued":"2024-01-01","errors":[{"scope":"F","field":"amount","error_code":111,"error_name":"INVALID"}]}`
		gw.httpClient.Transport = tokenThen(t, func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusConflict, raw)
		})

		client, err := gw.Authorize(context.Background(), testCreds, "cs")
		require.NoError(t, err)

		resp, err := client.Create(context.Background(), payload)
		require.NoError(t, err)
		require.Len(t, resp.JSON.Errors, 1)
		assert.Equal(t, "amount", resp.JSON.Errors[0].Field)
		assert.Equal(t, raw, resp.String())
	})

	t.Run("InvalidJSONResponse", func(t *testing.T) {
		gw.httpClient.Transport = tokenThen(t, func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{invalid-json`)
		})

		client, err := gw.Authorize(context.Background(), testCreds, "cs")
		require.NoError(t, err)

		_, err = client.Create(context.Background(), payload)
		var gwErr *GatewayError
		assert.ErrorAs(t, err, &gwErr)
	})
}

func TestGoPayClient_Retrieve(t *testing.T) {
	gw := NewGoPayGateway().(*gopayGateway)

	t.Run("Success", func(t *testing.T) {
		gw.httpClient.Transport = tokenThen(t, func(req *http.Request) *http.Response {
			assert.Equal(t, http.MethodGet, req.Method)
			assert.Equal(t, SandboxURL+"/payments/payment/3000006529", req.URL.String())
			return jsonResponse(http.StatusOK, `{"id":3000006529,"state":"PAID"}`)
		})

		client, err := gw.Authorize(context.Background(), testCreds, "cs")
		require.NoError(t, err)

		resp, err := client.Retrieve(context.Background(), 3000006529)
		require.NoError(t, err)
		assert.Equal(t, "PAID", resp.JSON.State)
	})

	t.Run("NotFound_WithoutErrorBody", func(t *testing.T) {
		gw.httpClient.Transport = tokenThen(t, func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusNotFound, `{}`)
		})

		client, err := gw.Authorize(context.Background(), testCreds, "cs")
		require.NoError(t, err)

		resp, err := client.Retrieve(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, resp.JSON.Errors, 1)
		assert.Equal(t, http.StatusNotFound, resp.JSON.Errors[0].ErrorCode)
	})

	t.Run("NetworkError", func(t *testing.T) {
		gw.httpClient.Transport = tokenThen(t, func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{}`)
		})
		client, err := gw.Authorize(context.Background(), testCreds, "cs")
		require.NoError(t, err)

		gw.httpClient.Transport = MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("timeout")
		})

		_, err = client.Retrieve(context.Background(), 1)
		var gwErr *GatewayError
		assert.ErrorAs(t, err, &gwErr)
		assert.Contains(t, err.Error(), "timeout")
	})
}
