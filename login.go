package tellurio

import "context"

// LoginResult mirrors login()'s returned {"email":..., "session_id":...}
// dict; SessionID is left empty until the RPC transport surfaces a
// server-assigned session identifier.
type LoginResult struct {
	Email     string
	SessionID string
}

// Login authenticates against the default Client, performing both the REST
// verification and the WebSocket dial, mirroring afnio.tellurio.login's
// combined HTTP-then-WebSocket login flow.
func Login(ctx context.Context, apiKey string, relogin bool) (*LoginResult, error) {
	client, err := DefaultClient()
	if err != nil {
		return nil, err
	}
	email, err := client.Login(ctx, apiKey, relogin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Email: email}, nil
}
