package loginflow

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
)

func validConfig() *Config {
	return &Config{
		TenantName:   "acme",
		AuthEndpoint: "https://auth.example.com/v2/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		SkipBrowser:  true,
		ListenAddr:   "127.0.0.1:0",
	}
}

func TestNewFlowValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing tenant name",
			mutate:  func(c *Config) { c.TenantName = "" },
			wantErr: "tenant name is required",
		},
		{
			name:    "missing client ID",
			mutate:  func(c *Config) { c.ClientID = "" },
			wantErr: "client ID is required",
		},
		{
			name:    "plain http auth endpoint",
			mutate:  func(c *Config) { c.AuthEndpoint = "http://auth.example.com/v2/token" },
			wantErr: "invalid authorization endpoint",
		},
		{
			name:    "empty auth endpoint",
			mutate:  func(c *Config) { c.AuthEndpoint = "" },
			wantErr: "invalid authorization endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			_, err := NewFlow(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewFlowNilConfig(t *testing.T) {
	t.Parallel()

	_, err := NewFlow(nil)
	require.Error(t, err)
}

func TestAuthorizationURL(t *testing.T) {
	t.Parallel()

	flow, err := NewFlow(validConfig())
	require.NoError(t, err)

	authURL := flow.AuthorizationURL()
	assert.True(t, strings.HasPrefix(authURL, "https://auth.example.com/v2/authorize?"))
	assert.Contains(t, authURL, "response_type=code")
	assert.Contains(t, authURL, "client_id=client-id")
	assert.Contains(t, authURL, "redirect_uri=https%3A%2F%2F127.0.0.1%3A8443%2Fcallback")
	assert.Contains(t, authURL, "state="+flow.state)
}

func TestDefaultsApplied(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.ListenAddr = ""
	cfg.RedirectURI = ""

	flow, err := NewFlow(cfg)
	require.NoError(t, err)

	assert.Equal(t, DefaultRedirectURI, flow.RedirectURI())
	assert.Equal(t, DefaultListenAddr, flow.config.ListenAddr)
}

// insecureClient returns an HTTP client that accepts the flow's self-signed
// loopback certificate.
func insecureClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // test client for a self-signed loopback cert
		},
		Timeout: 5 * time.Second,
	}
}

// runFlow starts flow.run on a fresh loopback listener and returns the
// callback base URL plus a channel carrying the flow's result.
func runFlow(t *testing.T, ctx context.Context, flow *Flow) (string, <-chan flowResult) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	results := make(chan flowResult, 1)
	go func() {
		code, runErr := flow.run(ctx, ln)
		results <- flowResult{code: code, err: runErr}
	}()

	return fmt.Sprintf("https://%s/callback", ln.Addr()), results
}

type flowResult struct {
	code string
	err  error
}

// hitCallback retries the callback request until the server accepts it.
func hitCallback(t *testing.T, rawURL string) *http.Response {
	t.Helper()

	client := insecureClient()
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = client.Get(rawURL) //nolint:noctx // test request
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	return resp
}

func TestRunDeliversCode(t *testing.T) {
	t.Parallel()

	flow, err := NewFlow(validConfig())
	require.NoError(t, err)

	base, results := runFlow(t, context.Background(), flow)

	resp := hitCallback(t, base+"?state="+flow.state+"&code=one-time-code")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := <-results
	require.NoError(t, result.err)
	assert.Equal(t, "one-time-code", result.code)
}

func TestRunRejectsBadState(t *testing.T) {
	t.Parallel()

	flow, err := NewFlow(validConfig())
	require.NoError(t, err)

	base, results := runFlow(t, context.Background(), flow)

	resp := hitCallback(t, base+"?state=forged&code=one-time-code")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	result := <-results
	require.Error(t, result.err)
	assert.True(t, tgerrors.IsInternal(result.err))
}

func TestRunAccessDeniedIsCancellation(t *testing.T) {
	t.Parallel()

	flow, err := NewFlow(validConfig())
	require.NoError(t, err)

	base, results := runFlow(t, context.Background(), flow)

	resp := hitCallback(t, base+"?error=access_denied&error_description=user+said+no")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	result := <-results
	require.Error(t, result.err)
	assert.True(t, tgerrors.IsLoginCancelled(result.err))
}

func TestRunServerErrorParam(t *testing.T) {
	t.Parallel()

	flow, err := NewFlow(validConfig())
	require.NoError(t, err)

	base, results := runFlow(t, context.Background(), flow)

	resp := hitCallback(t, base+"?error=server_error")
	defer resp.Body.Close()

	result := <-results
	require.Error(t, result.err)
	assert.True(t, tgerrors.IsInternal(result.err))
}

func TestCallbackReplayDoesNotBlock(t *testing.T) {
	t.Parallel()

	flow, err := NewFlow(validConfig())
	require.NoError(t, err)

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)
	handler := flow.handleCallback(codeChan, errorChan)

	hit := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	first := hit("/callback?state=" + flow.state + "&code=one-time-code")
	assert.Equal(t, http.StatusOK, first.Code)

	// A reload or stray second redirect arrives after the flow resolved:
	// both outcome channels are already occupied and the handler must
	// still return instead of wedging its goroutine.
	errorChan <- tgerrors.NewInternalError("occupied", nil)
	done := make(chan struct{})
	go func() {
		hit("/callback?state=" + flow.state + "&code=replayed-code")
		hit("/callback?error=access_denied")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replayed callback blocked on a full channel")
	}

	assert.Equal(t, "one-time-code", <-codeChan)
	select {
	case code := <-codeChan:
		t.Fatalf("replayed code %q was delivered", code)
	default:
	}
}

func TestRunContextCancelled(t *testing.T) {
	t.Parallel()

	flow, err := NewFlow(validConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, results := runFlow(t, ctx, flow)
	cancel()

	result := <-results
	require.Error(t, result.err)
	assert.True(t, tgerrors.IsLoginCancelled(result.err))
}
