// Package oauth implements the Google authorization-code round trip and
// turns the userinfo response into identity claims.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"shoppingcart/internal/usecase"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// userinfoの最大サイズ
const maxUserInfoBytes = 1 << 20

// GoogleProvider is the usecase.IdentityProvider backed by Google OAuth 2.0.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

type Option func(*GoogleProvider)

// WithEndpoint replaces Google's auth/token endpoints (tests).
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(p *GoogleProvider) { p.cfg.Endpoint = ep }
}

func WithUserInfoURL(url string) Option {
	return func(p *GoogleProvider) { p.userInfoURL = url }
}

// WithHTTPClient sets the client used for token exchange and userinfo.
func WithHTTPClient(c *http.Client) Option {
	return func(p *GoogleProvider) { p.httpClient = c }
}

func NewGoogleProvider(clientID string, clientSecret string, redirectURL string, opts ...Option) *GoogleProvider {
	p := &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ usecase.IdentityProvider = (*GoogleProvider)(nil)

// AuthCodeURL returns the consent page URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange trades the code for a token and reads the userinfo claims.
// Rejections by Google wrap usecase.ErrProviderRejected; transport failures do not.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) ([]usecase.Claim, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
			reason := re.ErrorCode
			if reason == "" {
				reason = re.Response.Status
			}
			return nil, fmt.Errorf("%w: %s", usecase.ErrProviderRejected, reason)
		}
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: userinfo %s", usecase.ErrProviderRejected, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch userinfo: unexpected status %s", resp.Status)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}

	return info.claims(), nil
}

// 未確認のemailはclaimに入れない
func (u userInfo) claims() []usecase.Claim {
	var claims []usecase.Claim
	if u.Sub != "" {
		claims = append(claims, usecase.Claim{Type: usecase.ClaimSubject, Value: u.Sub})
	}
	if u.Email != "" && u.EmailVerified {
		claims = append(claims, usecase.Claim{Type: usecase.ClaimEmail, Value: u.Email})
	}
	if u.Name != "" {
		claims = append(claims, usecase.Claim{Type: usecase.ClaimName, Value: u.Name})
	}
	return claims
}
