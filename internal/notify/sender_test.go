package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordSendPostsWebhookPayload(t *testing.T) {
	var (
		got         map[string]string
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Position opened", "BTC-USD size 0.5"))

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "**Position opened**\nBTC-USD size 0.5", got["content"])
}

func TestPostJSONRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid webhook token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := postJSON(context.Background(), srv.Client(), "discord", srv.URL,
		map[string]string{"content": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 401")
	assert.Contains(t, err.Error(), "invalid webhook token")
}
