// Package tellurio is the top-level client entrypoint: it wires config,
// credential storage, the REST surface and the RPC transport into a single
// default Client, mirroring client.py's TellurioClient and
// get_default_client().
package tellurio

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/tellurio-ai/tellurio-go/config"
	"github.com/tellurio-ai/tellurio-go/credential"
	"github.com/tellurio-ai/tellurio-go/handlers"
	"github.com/tellurio-ai/tellurio-go/restapi"
	"github.com/tellurio-ai/tellurio-go/rpc"
)

// Client bundles the REST surface and the duplex RPC connection behind a
// single authenticated session, as client.py's TellurioClient plus
// TellurioWebSocketClient do together.
type Client struct {
	cfg    *config.Config
	store  credential.Store
	logger *zap.Logger

	apiKey string
	REST   *restapi.Client
	RPC    rpc.Conn
}

var (
	defaultClientMu sync.Mutex
	defaultClient   *Client
	defaultLogger   = zap.NewNop()
)

// SetLogger installs the structured logger DefaultClient will attach to new
// Clients and to the RPC/REST surfaces it dials. Call before the first
// DefaultClient/Login; library code defaults to zap.NewNop(), matching
// jsonrpc2.Conn's default, while cmd/tellurio installs zap.NewProduction().
func SetLogger(logger *zap.Logger) {
	defaultClientMu.Lock()
	defer defaultClientMu.Unlock()
	defaultLogger = logger
}

// DefaultClient returns the process-wide default Client, constructing it
// from environment configuration on first use, mirroring
// get_default_client()'s lazy-singleton behavior.
func DefaultClient() (*Client, error) {
	defaultClientMu.Lock()
	defer defaultClientMu.Unlock()
	if defaultClient != nil {
		return defaultClient, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		store:  credential.NewStore(cfg.KeyringService),
		logger: defaultLogger,
	}
	defaultClient = c
	return c, nil
}

// SetDefaultClient overrides the process-wide default Client, primarily for
// tests.
func SetDefaultClient(c *Client) {
	defaultClientMu.Lock()
	defer defaultClientMu.Unlock()
	defaultClient = c
}

// NewForTest builds a Client from an explicit Config and credential.Store,
// bypassing config.Load()'s environment read. Exported for package tellurio_test,
// which cannot otherwise populate Client's unexported fields.
func NewForTest(cfg *config.Config, store credential.Store) *Client {
	return &Client{cfg: cfg, store: store, logger: defaultLogger}
}

// Login authenticates apiKey against the backend and, if valid, persists it
// to the credential store and dials the RPC transport. If apiKey is empty
// and relogin is false, the stored key is used instead. Mirrors
// TellurioClient.login.
func (c *Client) Login(ctx context.Context, apiKey string, relogin bool) (string, error) {
	if apiKey == "" {
		if relogin {
			return "", fmt.Errorf("api key is required for re-login")
		}
		stored, err := c.store.Get()
		if err != nil {
			return "", err
		}
		if stored == "" {
			return "", fmt.Errorf("api key is required for the first login")
		}
		apiKey = stored
	}

	rest := restapi.New(c.cfg.HTTPURL(), apiKey, restapi.WithLogger(c.logger))
	result, err := rest.VerifyAPIKey(ctx)
	if err != nil {
		return "", err
	}

	if err := c.store.Set(apiKey); err != nil {
		return "", err
	}

	c.apiKey = apiKey
	c.REST = rest

	header := http.Header{}
	header.Set("Authorization", "Api-Key "+apiKey)
	dialer := rpc.WebSocketDialer(c.cfg.WebSocketURL(), header)
	conn, err := rpc.Dial(ctx, dialer, rpc.WithLogger(c.logger))
	if err != nil {
		return "", err
	}
	conn.Go(ctx, rpc.AsyncHandler(handlers.Dispatch()))
	c.RPC = conn

	return result.Email, nil
}

// APIKey returns the API key this Client authenticated with, or "" before
// Login succeeds.
func (c *Client) APIKey() string { return c.apiKey }
