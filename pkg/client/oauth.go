package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	ftErrors "github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/jsonutil"
)

// refreshScope is the scope set requested on every token refresh. The API
// rotates the refresh token on each exchange, so the "offline" scope must
// always be present to receive a replacement.
const refreshScope = "forms:read accounts:read images:read responses:read themes:read workspaces:read offline"

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh exchanges the configured refresh token for a fresh token pair and
// persists the rotated pair back to the config store. Without a refresh
// token it is a no-op. In dev mode the exchange is skipped, but an access
// token must already be configured.
func (c *Client) Refresh(ctx context.Context) error {
	if c.refreshToken == "" {
		return nil
	}

	if c.devMode {
		c.logger.Warn("dev mode enabled, skipping token refresh")
		if c.accessToken == "" {
			return ftErrors.New(ftErrors.ErrorTypeConfig,
				"dev mode requires an access token in the config")
		}
		return nil
	}

	var tok *oauth2.Token
	err := c.withRetries(ctx, func() error {
		t, err := c.exchangeRefreshToken(ctx)
		if err != nil {
			return err
		}
		tok = t
		return nil
	})
	if err != nil {
		return err
	}

	c.accessToken = tok.AccessToken
	c.refreshToken = tok.RefreshToken

	if c.store != nil {
		if err := c.store.Update(map[string]interface{}{
			"refresh_token": tok.RefreshToken,
			"token":         tok.AccessToken,
		}); err != nil {
			return ftErrors.Wrap(err, ftErrors.ErrorTypeConfig,
				"failed to persist rotated token pair")
		}
	}

	c.logger.Info("access token refreshed")
	return nil
}

// exchangeRefreshToken performs one refresh-token grant against the token
// endpoint. x/oauth2's own refresh flow omits the scope parameter, which
// the API requires to issue a replacement refresh token, so the request is
// built by hand and the result is returned as an oauth2.Token.
func (c *Client) exchangeRefreshToken(ctx context.Context) (*oauth2.Token, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {c.refreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {refreshScope},
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		c.BuildURL("oauth/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, ftErrors.Wrap(err, ftErrors.ErrorTypeValidation, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Info("refreshing access token", zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyResponse(resp, body)
	}

	var tr tokenResponse
	if err := jsonutil.Unmarshal(body, &tr); err != nil {
		return nil, ftErrors.Wrap(err, ftErrors.ErrorTypeData, "failed to decode token response")
	}
	if tr.AccessToken == "" {
		return nil, ftErrors.New(ftErrors.ErrorTypeUnauthorized, "token endpoint returned no access token")
	}

	return &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}, nil
}
