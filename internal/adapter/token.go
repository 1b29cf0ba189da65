// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// TokenClientConfig tunes the token server client.
type TokenClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

type tokenClient struct {
	client *resty.Client
	log    *logger.Logger

	// now is swappable in tests for assertion expiry checks.
	now func() time.Time
}

// NewTokenClient constructs a TokenClient against the configured token
// server.
func NewTokenClient(cfg TokenClientConfig, log *logger.Logger) TokenClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &tokenClient{client: cli, log: log, now: time.Now}
}

// Exchange implements TokenClient.
func (t *tokenClient) Exchange(ctx context.Context, assertion string) (models.TokenServerResponse, error) {
	if err := t.checkAssertion(assertion); err != nil {
		return models.TokenServerResponse{}, err
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "BrowserID "+assertion).
		Get("/1.0/sync/1.5")
	if err != nil {
		return models.TokenServerResponse{}, fmt.Errorf("token exchange request: %w", err)
	}

	if err = mapTokenError(resp); err != nil {
		return models.TokenServerResponse{}, err
	}

	var token models.TokenServerResponse
	if err = json.Unmarshal(resp.Body(), &token); err != nil {
		return models.TokenServerResponse{}, fmt.Errorf("decode token response: %w", err)
	}

	t.log.Debug().
		Int64("uid", token.UID).
		Str("endpoint", token.Endpoint).
		Int64("duration_s", token.Duration).
		Msg("token exchange succeeded")

	return token, nil
}

// checkAssertion parses the assertion without verifying its signature (only
// the issuer can do that) and rejects it locally when already expired, so we
// do not burn a round trip on a guaranteed 401.
func (t *tokenClient) checkAssertion(assertion string) error {
	token, _, err := jwt.NewParser().ParseUnverified(assertion, jwt.MapClaims{})
	if err != nil {
		// Not a parsable JWT; let the server be the judge.
		return nil
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(t.now()) {
		return ErrAssertionExpired
	}
	return nil
}

func mapTokenError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	var body models.TokenServerError
	_ = json.Unmarshal(resp.Body(), &body)

	switch code {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusForbidden:
		if len(body.ConditionURLs) > 0 {
			return &ConditionsRequiredError{URLs: body.ConditionURLs}
		}
	}

	if len(body.Errors) > 0 {
		e := body.Errors[0]
		return fmt.Errorf("token server http %d: %s %s: %s", code, e.Location, e.Name, e.Description)
	}
	return fmt.Errorf("token server http %d: %s", code, strings.TrimSpace(string(resp.Body())))
}
