// Package loginflow implements the browser-based interactive login for a
// tenant: it opens the authorization page, serves the loopback redirect over
// TLS, and hands the resulting one-time code back to the caller.
package loginflow

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/networking"
	"github.com/tenantgate/tenantgate/pkg/tokenex"
)

const (
	// DefaultRedirectURI is the loopback redirect registered with the
	// authorization server. The client application owns this exact URI;
	// it is not configurable per tenant.
	DefaultRedirectURI = "https://127.0.0.1:8443/callback"

	// DefaultListenAddr is the address the callback server binds to.
	DefaultListenAddr = "127.0.0.1:8443"

	authorizePath = "/v2/authorize"
)

// Config contains the inputs for one interactive login.
type Config struct {
	// TenantName identifies the tenant being logged in.
	TenantName string

	// AuthEndpoint is the tenant's token endpoint URL. The authorization
	// page URL is derived from its origin.
	AuthEndpoint string

	// ClientID is the OAuth client ID for this tenant.
	ClientID string

	// ClientSecret is the OAuth client secret for this tenant.
	ClientSecret string

	// Scopes are the OAuth scopes to request (optional).
	Scopes []string

	// SkipBrowser prints the authorization URL instead of opening a browser.
	SkipBrowser bool

	// ListenAddr overrides the callback listen address (tests only).
	ListenAddr string

	// RedirectURI overrides the redirect URI sent to the server (tests only).
	RedirectURI string
}

// Flow drives a single authorization-code round trip: it serves the loopback
// callback, sends the user to the authorization page, and resolves with the
// one-time code. Token exchange is the caller's job.
type Flow struct {
	config       *Config
	oauth2Config *oauth2.Config
	state        string
	server       *http.Server
}

// NewFlow creates a flow for the given tenant configuration.
func NewFlow(config *Config) (*Flow, error) {
	if config == nil {
		return nil, tgerrors.NewInvalidArgumentError("login config cannot be nil", nil)
	}
	if config.TenantName == "" {
		return nil, tgerrors.NewInvalidArgumentError("tenant name is required", nil)
	}
	if config.ClientID == "" {
		return nil, tgerrors.NewInvalidArgumentError("client ID is required", nil)
	}
	if err := networking.ValidateEndpointURL(config.AuthEndpoint); err != nil {
		return nil, tgerrors.NewInvalidArgumentError("invalid authorization endpoint", err)
	}

	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.RedirectURI == "" {
		config.RedirectURI = DefaultRedirectURI
	}

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURI,
		Scopes:       config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  tokenex.AuthBase(config.AuthEndpoint) + authorizePath,
			TokenURL: config.AuthEndpoint,
		},
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state parameter: %w", err)
	}

	return &Flow{
		config:       config,
		oauth2Config: oauth2Config,
		state:        state,
	}, nil
}

// generateState generates a random state parameter.
func generateState() (string, error) {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(stateBytes), nil
}

// RedirectURI returns the redirect URI this flow advertises to the server.
func (f *Flow) RedirectURI() string {
	return f.config.RedirectURI
}

// AuthorizationURL returns the URL the user must visit to approve the login.
func (f *Flow) AuthorizationURL() string {
	return f.oauth2Config.AuthCodeURL(f.state)
}

// Run executes the flow and returns the authorization code. It blocks until
// the redirect arrives, the server reports an error, or ctx is cancelled.
// Cancellation resolves as a login cancelled error.
func (f *Flow) Run(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", f.config.ListenAddr)
	if err != nil {
		return "", tgerrors.NewInternalError(
			fmt.Sprintf("failed to bind callback address %s", f.config.ListenAddr), err)
	}
	return f.run(ctx, ln)
}

// run serves the callback on ln (wrapped in TLS) and waits for the outcome.
func (f *Flow) run(ctx context.Context, ln net.Listener) (string, error) {
	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	cert, err := selfSignedLoopbackCert()
	if err != nil {
		_ = ln.Close()
		return "", tgerrors.NewInternalError("failed to generate callback certificate", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", f.handleCallback(codeChan, errorChan))

	f.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsListener := tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	})

	go func() {
		logger.Infof("Starting login callback server on %s", ln.Addr())
		if serveErr := f.server.Serve(tlsListener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errorChan <- tgerrors.NewInternalError("callback server failed", serveErr)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := f.server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warnf("Failed to shut down login callback server: %v", shutdownErr)
		}
	}()

	authURL := f.AuthorizationURL()
	if !f.config.SkipBrowser {
		logger.Infof("Opening browser to: %s", authURL)
		if openErr := browser.OpenURL(authURL); openErr != nil {
			logger.Warnf("Failed to open browser: %v", openErr)
			logger.Infof("Please manually open this URL in your browser: %s", authURL)
		}
	} else {
		logger.Infof("Please open this URL in your browser: %s", authURL)
	}

	logger.Infof("Waiting for login callback for tenant %s...", f.config.TenantName)

	select {
	case code := <-codeChan:
		return code, nil
	case err := <-errorChan:
		return "", err
	case <-ctx.Done():
		return "", tgerrors.NewLoginCancelledError("login flow cancelled", ctx.Err())
	}
}

// handleCallback handles the loopback redirect from the authorization server.
// Delivery is non-blocking: only the first outcome counts, and a stray second
// redirect or page reload must not wedge the handler on a full channel.
func (f *Flow) handleCallback(codeChan chan<- string, errorChan chan<- error) http.HandlerFunc {
	deliverErr := func(err error) {
		select {
		case errorChan <- err:
		default:
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errParam := query.Get("error"); errParam != "" {
			errDesc := query.Get("error_description")
			var err error
			if errParam == "access_denied" {
				err = tgerrors.NewLoginCancelledError("authorization was denied", nil)
			} else {
				err = tgerrors.NewInternalError(
					fmt.Sprintf("authorization server returned error: %s - %s", errParam, errDesc), nil)
			}
			f.writeErrorPage(w, err)
			deliverErr(err)
			return
		}

		if state := query.Get("state"); state != f.state {
			err := tgerrors.NewInternalError("invalid state parameter", nil)
			f.writeErrorPage(w, err)
			deliverErr(err)
			return
		}

		code := query.Get("code")
		if code == "" {
			err := tgerrors.NewInternalError("missing authorization code", nil)
			f.writeErrorPage(w, err)
			deliverErr(err)
			return
		}

		f.writeSuccessPage(w)
		select {
		case codeChan <- code:
		default:
		}
	}
}

// setSecurityHeaders sets common security headers for callback responses.
func (*Flow) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; script-src 'none'; object-src 'none';")
}

// writeSuccessPage writes a success page to the response.
func (f *Flow) writeSuccessPage(w http.ResponseWriter) {
	f.setSecurityHeaders(w)
	htmlContent := `
<!DOCTYPE html>
<html>
<head>
    <title>Login Successful</title>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .message { max-width: 600px; margin: 0 auto; padding: 20px; border-radius: 5px;
                   background-color: #e8f5e9; border: 1px solid #a5d6a7; color: #2e7d32; }
    </style>
</head>
<body>
    <div class="message">
        <h1>Login successful</h1>
        <p>You can close this window and return to the application.</p>
    </div>
</body>
</html>`
	if _, err := w.Write([]byte(htmlContent)); err != nil {
		logger.Warnf("Failed to write success page: %v", err)
	}
}

// writeErrorPage writes an error page to the response.
func (f *Flow) writeErrorPage(w http.ResponseWriter, err error) {
	f.setSecurityHeaders(w)
	w.WriteHeader(http.StatusBadRequest)
	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>Login Failed</title>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .message { max-width: 600px; margin: 0 auto; padding: 20px; border-radius: 5px;
                   background-color: #ffebee; border: 1px solid #ef9a9a; color: #c62828; }
    </style>
</head>
<body>
    <div class="message">
        <h1>Login failed</h1>
        <p>%s</p>
    </div>
</body>
</html>`, html.EscapeString(tgerrors.Reason(err)))
	if _, writeErr := w.Write([]byte(htmlContent)); writeErr != nil {
		logger.Warnf("Failed to write error page: %v", writeErr)
	}
}

// selfSignedLoopbackCert generates an in-memory self-signed certificate for
// the loopback callback server. The redirect URI is https on 127.0.0.1, so
// the listener must speak TLS even though it never leaves the machine.
func selfSignedLoopbackCert() (*tls.Certificate, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: "127.0.0.1",
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{derBytes},
		PrivateKey:  privateKey,
	}, nil
}
