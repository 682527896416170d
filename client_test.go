package tellurio_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	tellurio "github.com/tellurio-ai/tellurio-go"
	"github.com/tellurio-ai/tellurio-go/config"
	"github.com/tellurio-ai/tellurio-go/credential"
)

// splitHostPort turns "http://127.0.0.1:54321" into ("http://127.0.0.1", "54321")
// so it can populate config.Config's separate Base/Port fields, mirroring how
// WebSocketURL/HTTPURL glue the two back together with a colon.
func splitHostPort(t *testing.T, rawURL, scheme string) (string, string) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return scheme + "://" + u.Hostname(), u.Port()
}

func newTestConfig(t *testing.T, restURL, wsURL, keyringService string) *config.Config {
	t.Helper()
	httpBase, httpPort := splitHostPort(t, restURL, "http")
	wsBase, wsPort := splitHostPort(t, wsURL, "ws")
	return &config.Config{
		WSBaseURL:      wsBase,
		WSPort:         wsPort,
		HTTPBaseURL:    httpBase,
		HTTPPort:       httpPort,
		KeyringService: keyringService,
	}
}

func newAcceptingWebSocketServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.ReadMessage() //nolint:errcheck
	}))
}

func TestLoginWithEmptyKeyAndNoStoredKeyFails(t *testing.T) {
	keyring.MockInit()
	cfg := &config.Config{KeyringService: "tellurio-client-empty"}
	client := tellurio.NewForTest(cfg, credential.NewStore(cfg.KeyringService))

	_, err := client.Login(t.Context(), "", false)
	require.Error(t, err)
}

func TestLoginWithEmptyKeyAndReloginFails(t *testing.T) {
	keyring.MockInit()
	cfg := &config.Config{KeyringService: "tellurio-client-relogin"}
	client := tellurio.NewForTest(cfg, credential.NewStore(cfg.KeyringService))

	_, err := client.Login(t.Context(), "", true)
	require.Error(t, err)
}

func TestLoginHappyPath(t *testing.T) {
	keyring.MockInit()

	restServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Api-Key fresh-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"email": "ada@example.com"})
	}))
	defer restServer.Close()

	wsServer := newAcceptingWebSocketServer(t)
	defer wsServer.Close()

	cfg := newTestConfig(t, restServer.URL, wsServer.URL, "tellurio-client-happy")
	client := tellurio.NewForTest(cfg, credential.NewStore(cfg.KeyringService))

	email, err := client.Login(t.Context(), "fresh-key", false)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)
	assert.Equal(t, "fresh-key", client.APIKey())
}

func TestLoginReusesStoredKeyWhenArgIsEmpty(t *testing.T) {
	keyring.MockInit()

	restServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Api-Key stored-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"email": "stored@example.com"})
	}))
	defer restServer.Close()

	wsServer := newAcceptingWebSocketServer(t)
	defer wsServer.Close()

	cfg := newTestConfig(t, restServer.URL, wsServer.URL, "tellurio-client-stored")
	store := credential.NewStore(cfg.KeyringService)
	require.NoError(t, store.Set("stored-key"))

	client := tellurio.NewForTest(cfg, store)

	email, err := client.Login(t.Context(), "", false)
	require.NoError(t, err)
	assert.Equal(t, "stored@example.com", email)
}
