package datagen

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClient manages accounts and API tokens.
type AuthClient struct {
	c *Client
}

// Register creates an account.
func (a *AuthClient) Register(ctx context.Context, email, password string) (User, error) {
	if err := checkCredentials(email, password); err != nil {
		return User{}, err
	}
	return postJSON[User](ctx, a.c, "auth.register", "/auth/register", credentials{Email: email, Password: password})
}

// Login exchanges credentials for a token. Use Client.WithAPIKey(token.Value) to make
// authenticated calls with it.
func (a *AuthClient) Login(ctx context.Context, email, password string) (AuthToken, error) {
	if err := checkCredentials(email, password); err != nil {
		return AuthToken{}, err
	}

	out, err := postJSON[loginResponse](ctx, a.c, "auth.login", "/auth/login", credentials{Email: email, Password: password})
	if err != nil {
		return AuthToken{}, err
	}
	if out.AccessToken == "" {
		return AuthToken{}, fmt.Errorf("%w: login response carried no token", ErrServer)
	}

	tok := AuthToken{Value: out.AccessToken, ID: out.TokenID, ExpiresAt: out.ExpiresAt}
	if tok.ExpiresAt == nil {
		if exp, ok := tokenExpiry(out.AccessToken); ok {
			tok.ExpiresAt = &exp
		}
	}

	a.c.log.Info().Int64("token_id", tok.ID).Msg("logged in")
	return tok, nil
}

// ValidateToken checks token with the server. An empty token checks the client's own key.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (TokenValidation, error) {
	var body any
	if token != "" {
		body = tokenBody{Token: token}
	}
	return doJSON[TokenValidation](ctx, a.c, call{op: "auth.validate", method: http.MethodPost, path: "/auth/validate", body: body})
}

// ListTokens returns the tokens of the authenticated account.
func (a *AuthClient) ListTokens(ctx context.Context, opts ListTokensOptions) (TokenList, error) {
	return getJSON[TokenList](ctx, a.c, "auth.tokens", "/auth/tokens", map[string]string{
		"include_revoked": strconv.FormatBool(opts.IncludeRevoked),
		"include_expired": strconv.FormatBool(opts.IncludeExpired),
	})
}

// Revoke invalidates a token by value.
func (a *AuthClient) Revoke(ctx context.Context, token string) (RevokeResponse, error) {
	if token == "" {
		return RevokeResponse{}, &ValidationError{Field: "token", Reason: "is required"}
	}
	return postJSON[RevokeResponse](ctx, a.c, "auth.revoke", "/auth/revoke", tokenBody{Token: token})
}

// RevokeByID invalidates a token by its numeric id, as listed by ListTokens.
func (a *AuthClient) RevokeByID(ctx context.Context, id int64) (RevokeResponse, error) {
	if id <= 0 {
		return RevokeResponse{}, &ValidationError{Field: "token id", Reason: "must be positive"}
	}
	return postJSON[RevokeResponse](ctx, a.c, "auth.revoke_by_id", fmt.Sprintf("/auth/revoke/%d", id), nil)
}

// Me returns the account behind the client's key.
func (a *AuthClient) Me(ctx context.Context) (User, error) {
	return getJSON[User](ctx, a.c, "auth.me", "/auth/me", nil)
}

func checkCredentials(email, password string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if password == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}
	return nil
}

// tokenExpiry reads the exp claim of a JWT without verifying it.
func tokenExpiry(value string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(value, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
