package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ExchangeToken trades a login request token for a daily access token. The
// checksum is SHA-256 over api_key + request_token + api_secret, per the
// broker's session handshake.
func ExchangeToken(ctx context.Context, baseURL, apiKey, apiSecret, requestToken string) (string, error) {
	if baseURL == "" {
		baseURL = "https://api.kite.trade"
	}

	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))

	resp, err := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		R().
		SetContext(ctx).
		SetHeader("X-Kite-Version", "3").
		SetFormData(map[string]string{
			"api_key":       apiKey,
			"request_token": requestToken,
			"checksum":      hex.EncodeToString(sum[:]),
		}).
		Post("/session/token")
	if err != nil {
		return "", &TransientIOError{Op: "ExchangeToken", Err: err}
	}

	payload, err := decodeResponse(resp)
	if err != nil {
		return "", &TransientIOError{Op: "ExchangeToken", Err: err}
	}

	var session struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(payload.Data, &session); err != nil {
		return "", &TransientIOError{Op: "ExchangeToken", Err: fmt.Errorf("malformed session payload: %w", err)}
	}
	if session.AccessToken == "" {
		return "", &TransientIOError{Op: "ExchangeToken", Err: fmt.Errorf("empty access token in session payload")}
	}
	return session.AccessToken, nil
}
