package networking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFetchJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ContentTypeJSON, r.Header.Get("Accept"))
		w.Header().Set("Content-Type", ContentTypeJSON)
		_ = json.NewEncoder(w).Encode(testPayload{Name: "acme", Count: 3})
	}))
	t.Cleanup(srv.Close)

	result, err := FetchJSON[testPayload](context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "acme", result.Name)
	assert.Equal(t, 3, result.Count)
}

func TestFetchJSONNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := FetchJSON[testPayload](context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.True(t, IsHTTPError(err, http.StatusBadGateway))

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Contains(t, httpErr.Body, "nope")
}

func TestFetchJSONCustomErrorHandler(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentTypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	t.Cleanup(srv.Close)

	handled := errors.New("classified")
	_, err := FetchJSON[testPayload](context.Background(), srv.Client(), srv.URL,
		WithErrorHandler(func(resp *http.Response, body []byte) error {
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, string(body), "invalid_grant")
			return handled
		}))
	require.ErrorIs(t, err, handled)
}

func TestFetchJSONInvalidBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentTypeJSON)
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(srv.Close)

	_, err := FetchJSON[testPayload](context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse JSON response")
}

func TestFetchJSONWithForm(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ContentTypeFormURLEncoded, r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostFormValue("grant_type"))

		w.Header().Set("Content-Type", ContentTypeJSON)
		fmt.Fprintf(w, `{"name":%q,"count":1}`, r.PostFormValue("grant_type"))
	}))
	t.Cleanup(srv.Close)

	form := url.Values{"grant_type": {"refresh_token"}}
	result, err := FetchJSONWithForm[testPayload](context.Background(), srv.Client(), srv.URL, form)
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", result.Name)
}

func TestValidateEndpointURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{"valid https url", "https://mc.example.com/v2/token", false},
		{"http loopback allowed", "http://127.0.0.1:8443/token", false},
		{"http localhost allowed", "http://localhost:9000/token", false},
		{"http non-loopback rejected", "http://example.com/token", true},
		{"unsupported scheme", "ftp://example.com", true},
		{"missing host", "https://", true},
		{"not a url", "not-a-url", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateEndpointURL(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsURL("https://example.com"))
	assert.True(t, IsURL("http://example.com/path?x=1"))
	assert.False(t, IsURL(""))
	assert.False(t, IsURL("not-a-url"))
	assert.False(t, IsURL("ftp://example.com"))
}
