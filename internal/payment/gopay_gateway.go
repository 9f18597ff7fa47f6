package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gopay-checkout/internal/logger"

	"go.uber.org/zap"
)

const tokenScope = "payment-create"

type gopayGateway struct {
	httpClient *http.Client
	// baseURL overrides the endpoint picked from the credentials.
	baseURL string
}

// ----------------- Constructor -----------------

func NewGoPayGateway() Gateway {
	return &gopayGateway{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type gopayClient struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	lang        string
	goID        string
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ----------------- Authorize -----------------

func (g *gopayGateway) Authorize(ctx context.Context, creds Credentials, locale string) (Client, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("goid", creds.GoID),
		zap.Bool("production", creds.ProductionMode),
	)

	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, &AuthError{Err: errors.New("client id or secret is empty")}
	}

	base := g.baseURL
	if base == "" {
		base = creds.BaseURL()
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", tokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Error("GoPay token request failed", zap.Error(err))
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("failed to read gopay token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("GoPay rejected credentials",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, &AuthError{Err: fmt.Errorf("gopay token error: %s", string(bodyBytes))}
	}

	var tok tokenResponse
	if err := json.Unmarshal(bodyBytes, &tok); err != nil {
		return nil, &AuthError{Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &AuthError{Err: errors.New("gopay returned empty access token")}
	}

	return &gopayClient{
		httpClient:  g.httpClient,
		baseURL:     base,
		accessToken: tok.AccessToken,
		lang:        locale,
		goID:        creds.GoID,
	}, nil
}

// ----------------- Create -----------------

func (c *gopayClient) Create(ctx context.Context, payload *CreatePayload) (*Response, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_number", payload.OrderNumber),
		zap.Int64("amount", payload.Amount),
		zap.String("currency", payload.Currency),
	)

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to marshal payment request", zap.Error(err))
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/payment", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Info("Sending payment request to GoPay")
	return c.do(req, log)
}

// ----------------- Retrieve -----------------

func (c *gopayClient) Retrieve(ctx context.Context, paymentID int64) (*Response, error) {
	log := logger.FromCtx(ctx).With(zap.Int64("payment_id", paymentID))

	endpoint := c.baseURL + "/payments/payment/" + strconv.FormatInt(paymentID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req, log)
}

// do sends an authorized request. GoPay answers errors with a JSON body, so
// non-2xx statuses still decode into a Response carrying Errors.
func (c *gopayClient) do(req *http.Request, log *zap.Logger) (*Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("GoPay request failed", zap.Error(err))
		return nil, &GatewayError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("failed to read gopay response: %w", err)}
	}

	var body ResponseBody
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		log.Error("Failed decoding GoPay response",
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return nil, &GatewayError{Raw: bodyBytes, Err: err}
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn("GoPay returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		if len(body.Errors) == 0 {
			body.Errors = []APIError{{ErrorCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}}
		}
	}

	return &Response{JSON: body, Raw: bodyBytes}, nil
}
