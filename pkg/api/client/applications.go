package client

import (
	"context"
	"encoding/json"
	"net/http"
)

// SubmitApplication sends application with the held bearer token. Without
// a token the request goes out unauthenticated and the backend decides.
// The backend's reply (normally a boolean) is returned undecoded.
func (c *Client) SubmitApplication(ctx context.Context, application ApplicationRecord) (json.RawMessage, error) {
	body := map[string]any{"application": application}
	resp, err := c.do(ctx, "submit_application", http.MethodPost, pathSubmit, body, c.session.load().Token)
	if err != nil {
		return nil, err
	}
	reply, err := decodeRaw(resp)
	return reply, c.settle("submit_application", err)
}

// Accepted reports whether a submission reply signals success: a bare
// true, or an object with "success": true.
func Accepted(reply json.RawMessage) bool {
	var flag bool
	if err := json.Unmarshal(reply, &flag); err == nil {
		return flag
	}
	var obj struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(reply, &obj); err == nil {
		return obj.Success
	}
	return false
}

// ListApplications returns the recruiter overview of all applications.
func (c *Client) ListApplications(ctx context.Context) ([]ApplicationListEntry, error) {
	resp, err := c.do(ctx, "list_applications", http.MethodGet, pathApplications, nil, c.session.load().Token)
	if err != nil {
		return nil, err
	}
	var entries []ApplicationListEntry
	if err := decode(resp, &entries); err != nil {
		return nil, c.settle("list_applications", err)
	}
	c.settle("list_applications", nil)
	return entries, nil
}

// ProcessApplication will accept or reject the application owned by
// username. Not supported yet.
func (c *Client) ProcessApplication(ctx context.Context, username string) (bool, error) {
	return false, notSupported("process application")
}

// FetchUserData will return the application submitted by username, or nil
// when there is none. Not supported yet.
func (c *Client) FetchUserData(ctx context.Context, username string) (ApplicationRecord, error) {
	return nil, notSupported("fetch user data")
}

// FetchApplicationData is not supported yet.
func (c *Client) FetchApplicationData(ctx context.Context) (ApplicationRecord, error) {
	return nil, notSupported("fetch application data")
}

// ListJobs will list the open positions. Not supported yet.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	return nil, notSupported("list jobs")
}

// ApplicationStatus will report the decision on username's application.
// Not supported yet.
func (c *Client) ApplicationStatus(ctx context.Context, username string) (ApplicationState, error) {
	return "", notSupported("application status")
}
