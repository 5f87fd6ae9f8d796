// Package tokenex implements the OAuth2 network operations tenantgate needs:
// authorization-code exchange, refresh-token exchange, and the best-effort
// identity lookup. The client is stateless; callers own any caching.
package tokenex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/networking"
)

const (
	// DefaultTimeout bounds every token exchange request. An in-flight
	// exchange is not cancellable mid-request, but it never outlives this.
	DefaultTimeout = 30 * time.Second

	// userinfoPath is the identity endpoint relative to the auth endpoint base.
	userinfoPath = "/v2/userinfo"

	// identityMaxTries bounds the best-effort identity fetch, including the
	// initial attempt.
	identityMaxTries = 2

	// minExpiresIn is the shortest advertised token lifetime, in seconds,
	// worth accepting. Sessions discount a 300s freshness margin from every
	// token, so anything at or below that would be born expired.
	minExpiresIn = 300
)

// TokenResponse is the result of a successful code or refresh exchange.
// ExpiresIn is in seconds; callers convert it to an absolute instant
// immediately so it cannot drift across subsequent reads.
type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	ExpiresIn       int64  `json:"expires_in"`
	RestInstanceURL string `json:"rest_instance_url"`
	SoapInstanceURL string `json:"soap_instance_url"`
}

// Identity describes the authenticated user and their organization.
// Both are opaque to the session layer beyond display purposes; StackKey is
// carried for UI collaborators that build deep links.
type Identity struct {
	User         UserInfo         `json:"user"`
	Organization OrganizationInfo `json:"organization"`
}

// UserInfo is the user descriptor returned by the userinfo endpoint.
type UserInfo struct {
	Sub      string `json:"sub"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

// OrganizationInfo is the organization descriptor returned by the userinfo endpoint.
type OrganizationInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	StackKey string `json:"stack_key"`
}

// oauthErrorBody is the standard OAuth2 error response shape.
type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Client performs OAuth2 exchanges against a tenant's authorization endpoint.
type Client struct {
	httpClient networking.HTTPClient
}

// NewClient creates a token exchange client with a default HTTP client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// NewClientWithHTTP creates a token exchange client using the given HTTP
// client. Intended for tests.
func NewClientWithHTTP(httpClient networking.HTTPClient) *Client {
	return &Client{httpClient: httpClient}
}

// ExchangeCode exchanges a one-time authorization code for tokens.
func (c *Client) ExchangeCode(
	ctx context.Context,
	endpoint, clientID, clientSecret, code, redirectURI string,
) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}
	return c.exchange(ctx, endpoint, form)
}

// ExchangeRefreshToken exchanges a refresh token for a new access token.
// Servers typically rotate the refresh token in the response.
func (c *Client) ExchangeRefreshToken(
	ctx context.Context,
	endpoint, clientID, clientSecret, refreshToken string,
) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"refresh_token": {refreshToken},
	}
	return c.exchange(ctx, endpoint, form)
}

func (c *Client) exchange(ctx context.Context, endpoint string, form url.Values) (*TokenResponse, error) {
	if err := networking.ValidateEndpointURL(endpoint); err != nil {
		return nil, tgerrors.NewInvalidArgumentError("invalid token endpoint", err)
	}

	resp, err := networking.FetchJSONWithForm[TokenResponse](ctx, c.httpClient, endpoint, form,
		networking.WithErrorHandler(classifyOAuthError))
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	if resp.AccessToken == "" {
		return nil, tgerrors.NewTransientError("token endpoint returned no access token", nil)
	}
	if resp.ExpiresIn <= minExpiresIn {
		return nil, tgerrors.NewTransientError(
			fmt.Sprintf("token endpoint returned expires_in %d, inside the %ds freshness margin",
				resp.ExpiresIn, minExpiresIn), nil)
	}
	return resp, nil
}

// classifyOAuthError maps a structured OAuth error response to the error
// taxonomy. It returns nil for bodies it cannot parse, letting the generic
// HTTPError path take over.
func classifyOAuthError(resp *http.Response, body []byte) error {
	var oauthErr oauthErrorBody
	if err := json.Unmarshal(body, &oauthErr); err != nil || oauthErr.Error == "" {
		return nil
	}

	if oauthErr.Error == "invalid_grant" {
		msg := "refresh token was revoked or has expired"
		if oauthErr.ErrorDescription != "" {
			msg = fmt.Sprintf("%s: %s", msg, oauthErr.ErrorDescription)
		}
		return tgerrors.NewRevokedGrantError(msg, &networking.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       oauthErr.Error,
			URL:        resp.Request.URL.String(),
		})
	}

	return tgerrors.NewTransientError(
		fmt.Sprintf("token endpoint rejected the request: %s", oauthErr.Error), nil)
}

// classifyExchangeError resolves any exchange failure to the taxonomy:
// errors already classified pass through, HTTP status errors become
// transient server errors, everything else is a transient network failure.
func classifyExchangeError(err error) error {
	var typed *tgerrors.Error
	if errors.As(err, &typed) {
		return err
	}

	if networking.IsHTTPError(err, 0) {
		return tgerrors.NewTransientError("token endpoint returned an error response", err)
	}

	return tgerrors.NewTransientError("could not reach the token endpoint", err)
}

// AuthBase reduces a tenant's declared authorization endpoint (typically the
// token URL, e.g. https://mc.example.com/v2/token) to its origin. The
// authorize and userinfo endpoints are derived from this base.
func AuthBase(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return endpoint
	}
	return parsed.Scheme + "://" + parsed.Host
}

// FetchIdentity looks up the user and organization behind an access token.
// It is best-effort enrichment: failures are classified identity_unavailable
// and must not fail the surrounding exchange. Transient failures are retried
// once with exponential backoff.
func (c *Client) FetchIdentity(ctx context.Context, endpointBase, accessToken string) (*Identity, error) {
	if err := networking.ValidateEndpointURL(endpointBase); err != nil {
		return nil, tgerrors.NewInvalidArgumentError("invalid userinfo endpoint base", err)
	}

	requestURL := endpointBase + userinfoPath

	operation := func() (*Identity, error) {
		return networking.FetchJSON[Identity](ctx, c.httpClient, requestURL,
			networking.WithHeader("Authorization", "Bearer "+accessToken))
	}

	identity, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(identityMaxTries),
		backoff.WithNotify(func(err error, duration time.Duration) {
			logger.Debugf("retrying identity fetch after %v: %v", duration, err)
		}),
	)
	if err != nil {
		return nil, tgerrors.NewIdentityUnavailableError("could not fetch user identity", err)
	}
	return identity, nil
}
