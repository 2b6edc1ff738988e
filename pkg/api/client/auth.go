package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/recruitment/portal/pkg/crypto"
)

// Login exchanges credentials for a bearer token. The password is sent as
// its SHA-256 hex digest. The session is replaced only when the reply
// carries an Authorization header and a decodable body; on any failure the
// previous session is left as it was.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]string{
		"username":       username,
		"hashedPassword": crypto.DigestPassword(password),
	}
	resp, err := c.do(ctx, "login", http.MethodPost, pathLogin, body, "")
	if err != nil {
		return LoginResult{}, err
	}
	token, ok := tokenFromHeader(resp.header.Get("Authorization"))
	if !ok {
		c.logger.Info("login refused", "username", username, "status", resp.status)
		return LoginResult{}, c.settle("login", rejected(MsgCouldNotLogin))
	}
	fields, err := objectFields(resp.body)
	if err != nil {
		return LoginResult{}, c.settle("login", err)
	}
	var state any
	if raw, ok := fields["state"]; ok {
		_ = json.Unmarshal(raw, &state)
	}
	roleID, ok := roleFromJSON(fields["role_id"])
	if !ok && fields["role_id"] != nil {
		c.logger.Warn("login reply carries an unreadable role_id", "role_id", string(fields["role_id"]))
	}
	sess := c.session.store(authenticated(token, roleID))
	c.settle("login", nil)
	return LoginResult{State: state, RoleID: sess.RoleID, Session: sess}, nil
}

// objectFields splits a JSON reply into its top level members. A body that
// is valid JSON but not an object yields no fields.
func objectFields(body []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, transportFailure(fmt.Errorf("decode response: invalid JSON"))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return map[string]json.RawMessage{}, nil
	}
	return fields, nil
}

// roleFromJSON reads a role identifier sent either as a number or as a
// numeric string.
func roleFromJSON(raw json.RawMessage) (*int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &n, true
		}
	}
	return nil, false
}

// tokenFromHeader returns the second whitespace separated segment of an
// Authorization header value ("<scheme> <token>").
func tokenFromHeader(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

// CreateAccount registers user and, when the backend accepts it, logs in
// with the same credentials. The caller's record is not modified. A reply
// with success=false is returned as is, with no login attempt.
func (c *Client) CreateAccount(ctx context.Context, user UserRecord) (CreationOutcome, error) {
	body := map[string]any{"user": user.WithHashedPassword()}
	resp, err := c.do(ctx, "create_account", http.MethodPost, pathCreateAccount, body, "")
	if err != nil {
		return CreationOutcome{}, err
	}
	if env := envelopeFromBody(resp.body); env != nil {
		return CreationOutcome{}, c.settle("create_account", env)
	}
	fields, err := objectFields(resp.body)
	if err != nil {
		return CreationOutcome{}, c.settle("create_account", err)
	}
	created := parseCreation(fields)
	created.Raw = json.RawMessage(bytes.TrimSpace(resp.body))
	c.logger.Debug("account creation answered", "username", user.Username, "success", created.Success)
	if created.Success {
		c.settle("create_account", nil)
	} else {
		c.metrics.count("create_account", outcomeRejected)
	}

	out := CreationOutcome{Created: created}
	if !created.Success {
		return out, nil
	}
	login, err := c.Login(ctx, user.Username, user.Password)
	if err != nil {
		out.LoginErr = err
		return out, nil
	}
	out.Login = &login
	return out, nil
}

// CheckRoleID asks the backend whether the held token is still a valid
// login. Without a token it fails with "invalid token" and sends nothing.
func (c *Client) CheckRoleID(ctx context.Context) (json.RawMessage, error) {
	sess := c.session.load()
	if !sess.LoggedIn() {
		return nil, rejected(MsgInvalidToken)
	}
	resp, err := c.do(ctx, "check_login", http.MethodPost, pathCheckLogin, nil, sess.Token)
	if err != nil {
		return nil, err
	}
	status, err := decodeRaw(resp)
	return status, c.settle("check_login", err)
}

// SetRoleID overrides the role identifier locally. Nothing is sent.
func (c *Client) SetRoleID(id int) Session {
	return c.session.update(func(s Session) Session {
		return s.withRole(id)
	})
}

// ClearSession drops the token and role, returning the client to the
// anonymous state. The backend is not notified.
func (c *Client) ClearSession() Session {
	return c.session.store(Session{})
}
