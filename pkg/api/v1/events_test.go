package v1

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/pkg/session"
)

func TestStreamEventsDeliversPublishedEvent(t *testing.T) {
	t.Parallel()

	bus := session.NewBus()
	server := httptest.NewServer(EventsRouter(bus))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/", nil) //nolint:noctx // test request
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the handler time to subscribe before publishing.
	go func() {
		time.Sleep(100 * time.Millisecond)
		bus.Publish(session.Event{
			Type:    session.EventTokenReceived,
			Tenant:  "acme",
			Success: true,
		})
	}()

	var eventLine, dataLine string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimPrefix(line, "data: ")
		}
		if dataLine != "" {
			break
		}
	}

	assert.Equal(t, string(session.EventTokenReceived), eventLine)

	var event session.Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &event))
	assert.Equal(t, "acme", event.Tenant)
	assert.True(t, event.Success)
}

func TestStreamEventsStopsOnDisconnect(t *testing.T) {
	t.Parallel()

	bus := session.NewBus()
	server := httptest.NewServer(EventsRouter(bus))
	defer server.Close()

	resp, err := http.Get(server.URL + "/") //nolint:noctx // test request
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
}
