package jdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"ticket-resale/internal/status"
)

type ClientConfig struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	PartnerID string `json:"partnerId" mapstructure:"partner_id"`
	ClientID  string `json:"clientId" mapstructure:"client_id"`
	ClientKey string `json:"clientKey" mapstructure:"client_key"`
	HMACKey   string `json:"hmacKey" mapstructure:"hmac_key"`
}

// Client is the signed HTTP client for the JDB partner API.
type Client struct {
	baseURL   string
	partnerID string
	clientID  string
	clientKey string
	hmacKey   string

	mu          sync.Mutex
	accessToken string

	// toggleTokenRefresher wakes the refresher early after a 401.
	toggleTokenRefresher chan struct{}

	hc *http.Client
}

func newClient(_ context.Context, c *ClientConfig) *Client {
	return &Client{
		baseURL:   c.BaseURL,
		partnerID: c.PartnerID,
		clientID:  c.ClientID,
		clientKey: c.ClientKey,
		hmacKey:   c.HMACKey,

		// buffered so a 401 handler never blocks
		toggleTokenRefresher: make(chan struct{}, 1),

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// notifyAccessTokenExpired renews the access token on a fixed period, or
// immediately when a request hits a 401, retrying with exponential backoff.
func (c *Client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.toggleTokenRefresher:
			slog.Info("jdb: refreshing access token after 401")
		}

		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)
				break Retry

			default:
				slog.Error("jdb: reconnect failed", "error", err, "backoff", backOff)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// post sends a HMAC-signed JSON body to path and decodes the reply into out.
// The raw body string is signed, so callers build bodies deterministically.
func (c *Client) post(ctx context.Context, path, body string, authed bool, out any) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("jdb: parse base url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String()+path, bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("jdb: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))
	if authed {
		req.Header.Set("Authorization", c.getAccessToken())
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("jdb: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		select {
		case c.toggleTokenRefresher <- struct{}{}:
		default:
		}
		return errors.New("jdb: unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jdb: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("jdb: decode reply: %w", err)
	}

	return nil
}

// connect authenticates with the JDB backend and returns a bearer token.
func (c *Client) connect(ctx context.Context) (string, error) {
	number, err := randomNumber()
	if err != nil {
		return "", fmt.Errorf("jdb connect: %w", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"partnerId":%q,"clientId":%q,"clientScret":%q}`,
		number, c.partnerID, c.clientID, c.clientKey)

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AccessToken string `json:"accessToken"`
			TokenType   string `json:"tokenType"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/api/pro/dynamic/autenticate", body, false, &reply); err != nil {
		return "", err
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("jdb connect: status %s: %s", reply.Status, reply.Message)
	}

	return fmt.Sprintf("%s %s", reply.Data.TokenType, reply.Data.AccessToken), nil
}

// generateQR asks the JDB backend for a dynamic EMV QR payload.
func (c *Client) generateQR(ctx context.Context, f *status.FormQR) (string, error) {
	number, err := randomNumber()
	if err != nil {
		return "", fmt.Errorf("jdb generateQR: %w", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"partnerId":%q,"txnAmount":%s,"mechantId":%q,"billNumber":%q,"terminalId":%q,"terminalLabel":%q,"mobileNo":%q}`,
		number, c.partnerID, f.Amount, f.MerchantID, f.UUID, f.TerminalLabel, f.ReferenceLabel, f.Phone)

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			MerchantID string `json:"mcid"`
			EmvCode    string `json:"emv"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/api/pro/dynamic/generateQr", body, true, &reply); err != nil {
		return "", err
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("jdb generateQR: status %s: %s", reply.Status, reply.Message)
	}

	return reply.Data.EmvCode, nil
}

// checkTransaction fetches the settlement status of a bill from JDB.
func (c *Client) checkTransaction(ctx context.Context, uuid string) (*status.Transaction, error) {
	number, err := randomNumber()
	if err != nil {
		return nil, fmt.Errorf("jdb checkTransaction: %w", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"billNumber":%q}`, number, uuid)

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			payload
		} `json:"data"`
	}
	if err := c.post(ctx, "/api/pro/dynamic/checkTransaction", body, true, &reply); err != nil {
		return nil, err
	}
	if reply.Status != "OK" {
		if reply.Status == "NOT_FOUND" {
			return nil, status.ErrFailedPayment
		}
		return nil, fmt.Errorf("jdb checkTransaction: status %s: %s", reply.Status, reply.Message)
	}

	return reply.Data.payload.ToDomain()
}
