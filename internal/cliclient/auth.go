package cliclient

import "time"

// LoginResult is the admin API's POST /auth/login response.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges a username/password for a bearer token.
func (c *Client) Login(username, password string) (*LoginResult, error) {
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}

	var resp LoginResult
	if err := c.post("/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Session describes one open RPC connection, mirroring transport.SessionInfo.
type Session struct {
	RemoteAddr string    `json:"remote_addr"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Sessions lists the daemon's currently open RPC connections.
func (c *Client) Sessions() ([]Session, error) {
	var sessions []Session
	if err := c.get("/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateUser adds a new credential-store user.
func (c *Client) CreateUser(username, password string) error {
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}
	return c.post("/users", req, nil)
}

// DeleteUser removes a credential-store user by name.
func (c *Client) DeleteUser(username string) error {
	return c.delete("/users/"+username, nil)
}
